package metadata

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

// Prober resolves playback duration and embedded artwork from audio files.
type Prober struct {
	supportedFormats []string
	logger           *logrus.Logger
}

// NewProber creates a new audio prober for the given file extensions.
func NewProber(supportedFormats []string, logger *logrus.Logger) *Prober {
	return &Prober{
		supportedFormats: supportedFormats,
		logger:           logger,
	}
}

// ProbeDuration returns the duration of an audio file in seconds. A song is
// not considered fully created until this has been resolved.
func (p *Prober) ProbeDuration(filePath string) (float64, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp3":
		return p.durationMP3(filePath)
	case ".flac":
		return p.durationFLAC(filePath)
	case ".wav":
		return p.durationWAV(filePath)
	case ".m4a":
		return p.durationM4A(filePath)
	default:
		// Formats without a decoder here (.ogg) fall back to zero; the
		// browser fills the gap once its own decoder reports metadata.
		return 0, fmt.Errorf("no duration decoder for %s", ext)
	}
}

// MP3 duration by decoding frames; falls back to bitrate estimation only if
// no frame decodes at all.
func (p *Prober) durationMP3(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := mp3.NewDecoder(f)
	var total time.Duration
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 {
				return p.estimateFromFileSize(path, 192000) // assume 192 kbps
			}
			break // partial decode; use what we have
		}
		total += fr.Duration()
		frames++
	}
	return total.Seconds(), nil
}

// FLAC duration via the STREAMINFO metadata block.
func (p *Prober) durationFLAC(path string) (float64, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	si := stream.Info
	if si.NSamples > 0 && si.SampleRate > 0 {
		return float64(si.NSamples) / float64(si.SampleRate), nil
	}
	return 0, fmt.Errorf("flac stream missing sample info")
}

// WAV duration from the header plus file size; decoding every sample just to
// count them is not worth it for a progress bar.
func (p *Prober) durationWAV(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return 0, fmt.Errorf("invalid wav header")
	}

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	headerSize := int64(44)
	pcmBytes := st.Size() - headerSize
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	bytesPerSampleFrame := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if bytesPerSampleFrame <= 0 {
		return 0, fmt.Errorf("invalid sample frame size")
	}
	sampleFrames := pcmBytes / bytesPerSampleFrame
	return float64(sampleFrames) / float64(dec.SampleRate), nil
}

// M4A duration via a minimal scan for the mvhd atom's timescale and duration.
func (p *Prober) durationM4A(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	for {
		head := make([]byte, 8)
		if _, err := io.ReadFull(f, head); err != nil {
			return 0, err
		}
		size := binary.BigEndian.Uint32(head[0:4])
		atom := string(head[4:8])
		if size < 8 {
			return 0, fmt.Errorf("invalid atom size")
		}
		if atom != "moov" {
			if _, err := f.Seek(int64(size)-8, io.SeekCurrent); err != nil {
				return 0, err
			}
			continue
		}

		limit := int64(size) - 8
		for read := int64(0); read < limit; {
			subHead := make([]byte, 8)
			if _, err := io.ReadFull(f, subHead); err != nil {
				return 0, err
			}
			subSize := binary.BigEndian.Uint32(subHead[0:4])
			subAtom := string(subHead[4:8])
			if subAtom == "mvhd" {
				version := make([]byte, 1)
				if _, err := io.ReadFull(f, version); err != nil {
					return 0, err
				}
				var skip int64
				if version[0] == 1 { // 64-bit creation/modification times
					skip = 3 + 8 + 8
				} else {
					skip = 3 + 4 + 4
				}
				if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
					return 0, err
				}
				buf := make([]byte, 8)
				if _, err := io.ReadFull(f, buf); err != nil {
					return 0, err
				}
				timescale := binary.BigEndian.Uint32(buf[0:4])
				durUnits := binary.BigEndian.Uint32(buf[4:8])
				if timescale == 0 {
					return 0, fmt.Errorf("invalid timescale")
				}
				return float64(durUnits) / float64(timescale), nil
			}
			if subSize < 8 {
				return 0, fmt.Errorf("invalid sub-atom size")
			}
			if _, err := f.Seek(int64(subSize)-8, io.SeekCurrent); err != nil {
				return 0, err
			}
			read += int64(subSize)
		}
		break
	}
	return 0, fmt.Errorf("mvhd atom not found")
}

// estimateFromFileSize provides last-resort estimation if parsing fails.
func (p *Prober) estimateFromFileSize(path string, bitrate int) (float64, error) {
	st, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if bitrate <= 0 {
		return 0, fmt.Errorf("invalid bitrate")
	}
	return float64(st.Size()*8) / float64(bitrate), nil
}

// ExtractArtwork reads embedded picture metadata from an audio file and
// returns it as a directly embeddable data URI. Returns "" when the file
// carries no picture tag.
func (p *Prober) ExtractArtwork(filePath string) string {
	f, err := os.Open(filePath)
	if err != nil {
		return ""
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		p.logger.WithError(err).WithField("file_path", filePath).Debug("No readable tags in audio file")
		return ""
	}

	picture := meta.Picture()
	if picture == nil || len(picture.Data) == 0 {
		return ""
	}

	mimeType := picture.MIMEType
	if mimeType == "" {
		mimeType = http.DetectContentType(picture.Data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(picture.Data)
}

// IsAudioFile checks if a file has a supported audio extension.
func (p *Prober) IsAudioFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, format := range p.supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// SniffIsAudio checks whether the leading bytes of an upload look like audio
// content. Uploads that fail both the extension and content check are
// rejected at the boundary with an "audio files only" error.
func SniffIsAudio(head []byte) bool {
	contentType := http.DetectContentType(head)
	if strings.HasPrefix(contentType, "audio/") {
		return true
	}
	// http.DetectContentType reports m4a containers as video/mp4.
	if contentType == "video/mp4" && len(head) >= 12 && strings.Contains(string(head[4:12]), "ftyp") {
		return true
	}
	// It also has no sniff rule for ID3v2-tagged or bare mp3 frames.
	if strings.HasPrefix(string(head), "ID3") {
		return true
	}
	return len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0
}

// ContentType returns the MIME type for an audio file path.
func ContentType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
