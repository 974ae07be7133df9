package relod

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// HeatmapDump writes PNG visualizations of per-volume staleness, one
// cell per registered volume, for tuning the budget controller.
type HeatmapDump struct {
	outputDir string
	prefix    string
	// Frames-since-update that saturates to full red.
	window int64
}

func NewHeatmapDump(outputDir, prefix string, window int64) *HeatmapDump {
	if window < 1 {
		window = 60
	}
	return &HeatmapDump{
		outputDir: outputDir,
		prefix:    prefix,
		window:    window,
	}
}

// Capture renders the scheduler's volumes as a square grid of cells,
// green for freshly refreshed through red for stale, and writes it as a
// timestamped PNG. Returns the written path.
func (hd *HeatmapDump) Capture(sched *Scheduler) (string, error) {
	volumes := make([]*ProxyVolume, 0, sched.VolumeCount())
	for v := range sched.volumes {
		volumes = append(volumes, v)
	}
	if len(volumes) == 0 {
		return "", fmt.Errorf("no volumes registered")
	}
	slices.SortFunc(volumes, func(a, b *ProxyVolume) int {
		switch {
		case a.Id < b.Id:
			return -1
		case a.Id > b.Id:
			return 1
		default:
			return 0
		}
	})

	const cell = 8
	cols := 1
	for cols*cols < len(volumes) {
		cols++
	}
	rows := (len(volumes) + cols - 1) / cols

	img := image.NewRGBA(image.Rect(0, 0, cols*cell, rows*cell))
	frame := sched.Frame()

	for i, v := range volumes {
		var heat float64
		if v.lastUpdateFrame == neverUpdated {
			heat = 1
		} else {
			heat = float64(frame-v.lastUpdateFrame) / float64(hd.window)
			if heat > 1 {
				heat = 1
			}
		}
		c := color.RGBA{
			R: uint8(255 * heat),
			G: uint8(255 * (1 - heat)),
			A: 255,
		}
		x0 := (i % cols) * cell
		y0 := (i / cols) * cell
		for y := y0; y < y0+cell; y++ {
			for x := x0; x < x0+cell; x++ {
				img.SetRGBA(x, y, c)
			}
		}
	}

	if hd.outputDir != "" {
		if err := os.MkdirAll(hd.outputDir, 0755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := fmt.Sprintf("%s_%s.png", hd.prefix, timestamp)
	if hd.outputDir != "" {
		filename = filepath.Join(hd.outputDir, filename)
	}

	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return "", fmt.Errorf("encoding png: %w", err)
	}
	return filename, nil
}
