// Package mediainfo wraps the external mediainfo tool for HDR color
// metadata and Dolby Vision detection. Analyzer failures are non-fatal by
// contract: callers default to SDR and emit a warning.
package mediainfo

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/five82/drapto/internal/coreerr"
)

// HDRInfo is the dynamic-range metadata extracted from a video track.
type HDRInfo struct {
	IsHDR                   bool
	IsDolbyVision           bool // advisory only
	ColourPrimaries         string
	TransferCharacteristics string
	MatrixCoefficients      string
	BitDepth                *uint8
}

// Response is the parsed mediainfo JSON document.
type Response struct {
	Media struct {
		Track []Track `json:"track"`
	} `json:"media"`
}

// Track is one mediainfo track. Fields are strings because mediainfo
// emits all scalars as JSON strings.
type Track struct {
	Type                    string `json:"@type"`
	Format                  string `json:"Format"`
	Width                   string `json:"Width"`
	Height                  string `json:"Height"`
	BitDepth                string `json:"BitDepth"`
	ColourPrimaries         string `json:"colour_primaries"`
	TransferCharacteristics string `json:"transfer_characteristics"`
	MatrixCoefficients      string `json:"matrix_coefficients"`
	HDRFormat               string `json:"HDR_Format"`
	Channels                string `json:"Channels"`
}

// GetMediaInfo invokes mediainfo against the path and parses its output.
func GetMediaInfo(ctx context.Context, path string) (*Response, error) {
	cmd := exec.CommandContext(ctx, "mediainfo", "--Output=JSON", path)
	out, err := cmd.Output()
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindAnalyzer,
			fmt.Sprintf("failed to run mediainfo for %s", path), err)
	}
	return parseMediaInfoOutput(out)
}

func parseMediaInfoOutput(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, coreerr.Wrap(coreerr.KindAnalyzer, "failed to parse mediainfo output", err)
	}
	return &resp, nil
}

// DetectHDR extracts dynamic-range metadata from the first video track.
func DetectHDR(resp *Response) HDRInfo {
	video := findVideoTrack(resp)
	if video == nil {
		return HDRInfo{}
	}

	info := HDRInfo{
		ColourPrimaries:         video.ColourPrimaries,
		TransferCharacteristics: video.TransferCharacteristics,
		MatrixCoefficients:      video.MatrixCoefficients,
	}

	if depth, err := strconv.ParseUint(strings.TrimSpace(video.BitDepth), 10, 8); err == nil && depth > 0 {
		d := uint8(depth)
		info.BitDepth = &d
	}

	info.IsHDR = detectHDRFromMetadata(
		video.ColourPrimaries,
		video.TransferCharacteristics,
		video.MatrixCoefficients,
	) || video.HDRFormat != ""

	info.IsDolbyVision = strings.Contains(strings.ToLower(video.HDRFormat), "dolby vision")

	return info
}

func findVideoTrack(resp *Response) *Track {
	for i := range resp.Media.Track {
		if resp.Media.Track[i].Type == "Video" {
			return &resp.Media.Track[i]
		}
	}
	return nil
}

// hdrTransfers lists transfer characteristics that imply HDR, covering both
// mediainfo display names and ffprobe identifiers.
var hdrTransfers = []string{
	"pq", "smpte 2084", "smpte2084",
	"hlg", "arib-std-b67",
	"smpte428", "bt2020-10", "bt2020-12",
}

// detectHDRFromMetadata reports whether color metadata indicates HDR:
// an HDR transfer function, BT.2020/BT.2100 primaries, or a BT.2020 matrix.
func detectHDRFromMetadata(primaries, transfer, matrix string) bool {
	t := strings.ToLower(strings.TrimSpace(transfer))
	for _, hdr := range hdrTransfers {
		if t == hdr {
			return true
		}
	}

	p := strings.ToLower(strings.TrimSpace(primaries))
	if strings.HasPrefix(p, "bt.2020") || strings.HasPrefix(p, "bt.2100") || p == "bt2020" {
		return true
	}

	m := strings.ToLower(strings.TrimSpace(matrix))
	if m == "bt2020nc" || m == "bt2020c" || strings.HasPrefix(m, "bt.2020") {
		return true
	}

	return false
}
