package partae

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "00:00:00", formatElapsed(0))
	assert.Equal(t, "00:00:59", formatElapsed(59*time.Second))
	assert.Equal(t, "01:01:01", formatElapsed(3661*time.Second))
	// Hours do not wrap at 24.
	assert.Equal(t, "25:00:00", formatElapsed(25*time.Hour))
}

func TestConsoleRow(t *testing.T) {
	row := consoleRow(8*time.Second, 3, 1000, TrainSplit, 5, 100, 1e-3, 1.23456)
	assert.Contains(t, row, "00:00:08")
	assert.Contains(t, row, "3/1000")
	assert.Contains(t, row, "train")
	assert.Contains(t, row, "5/100")
	assert.Contains(t, row, "0.3%")
	assert.Contains(t, row, "1.00E-03")
	assert.Contains(t, row, "1.23456")
}

func TestConsoleHeaderAligns(t *testing.T) {
	header := consoleHeader()
	for _, title := range []string{"time", "epoch", "split", "batch", "progress", "lr", "total_loss"} {
		assert.Contains(t, header, title)
	}
	// Rows line up under the header as long as no field overflows its width.
	row := consoleRow(time.Minute, 12, 1000, ValSplit, 99, 625, 9.5e-4, 0.07321)
	assert.Equal(t, len(header), len(row))
}
