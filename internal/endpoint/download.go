package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"
)

// DownloadProgress is delivered to onProgress as the server reports
// bytes transferred. spec.md §4.6.4.
type DownloadProgress struct {
	Fraction            float64
	DownloadedBytes      int64
	TotalBytes           int64
	SpeedBytesPerSecond  int64
}

// String renders progress the way it belongs in a log line: human
// byte sizes and a rate, not raw integers.
func (p DownloadProgress) String() string {
	return fmt.Sprintf("%s / %s at %s/s (%.1f%%)",
		humanize.Bytes(uint64(p.DownloadedBytes)),
		humanize.Bytes(uint64(p.TotalBytes)),
		humanize.Bytes(uint64(p.SpeedBytesPerSecond)),
		p.Fraction*100)
}

type downloadFrame struct {
	Type                string  `json:"type"`
	Fraction            float64 `json:"fraction"`
	DownloadedBytes     int64   `json:"downloadedBytes"`
	TotalBytes          int64   `json:"totalBytes"`
	SpeedBytesPerSecond int64   `json:"speedBytesPerSecond"`
	Path                string  `json:"path"`
}

// RunDownload drives an already-opened downloadModel channel,
// reporting progress and returning the final path once the server
// finalizes the download. No cancellation is offered beyond the
// channel's own Cancel.
func RunDownload(ctx context.Context, ch receiver, log *slog.Logger, onProgress func(DownloadProgress)) (string, error) {
	if log == nil {
		log = slog.Default()
	}
	var maxFraction float64

	for {
		raw, err := ch.Recv(ctx)
		if err == io.EOF {
			return "", &RuntimeError{Detail: "download channel closed without a terminal path"}
		}
		if err != nil {
			return "", err
		}

		var f downloadFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return "", &RuntimeError{Detail: fmt.Sprintf("malformed download frame: %v", err)}
		}

		switch f.Type {
		case "progress":
			maxFraction = Monotonic(maxFraction, f.Fraction)
			progress := DownloadProgress{
				Fraction:            maxFraction,
				DownloadedBytes:     f.DownloadedBytes,
				TotalBytes:          f.TotalBytes,
				SpeedBytesPerSecond: f.SpeedBytesPerSecond,
			}
			log.Debug("download progress", "progress", progress.String())
			safeCall(log, "onProgress", func() {
				if onProgress != nil {
					onProgress(progress)
				}
			})
		case "finalized":
			return f.Path, nil
		default:
			log.Debug("ignoring unknown download frame", "type", f.Type)
		}
	}
}
