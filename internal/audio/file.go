package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"github.com/liuscraft/orion-stt/internal/errs"
)

const (
	wavFormatPCM        = 0x0001
	wavFormatIEEEFloat  = 0x0003
	wavFormatExtensible = 0xFFFE
)

// SupportedExtensions 可以提取 PCM 的文件扩展名
var SupportedExtensions = []string{".wav", ".mp3", ".pcm", ".raw"}

// IsSupported reports whether path has an extension ReadFile understands.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// ReadFile 读取音频文件并提取原始 PCM
// 文件不可读返回 KindIO；格式错误返回 KindConversion。
func ReadFile(path string) (PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return PCM{}, errs.Wrap(errs.KindIO, "audio.ReadFile", path, err)
	}
	defer f.Close()

	pcm, err := Decode(f, filepath.Ext(path))
	if err != nil {
		return PCM{}, fmt.Errorf("read %s: %w", path, err)
	}
	return pcm, nil
}

// Decode 按扩展名从 r 中提取 PCM。.pcm/.raw 视为 16kHz 单声道 s16le。
func Decode(r io.Reader, ext string) (PCM, error) {
	switch strings.ToLower(ext) {
	case ".wav", ".wave":
		data, err := io.ReadAll(r)
		if err != nil {
			return PCM{}, errs.Wrap(errs.KindIO, "audio.Decode", "read wav", err)
		}
		return parseWAV(data)
	case ".mp3":
		return decodeMP3(r)
	case ".pcm", ".raw":
		data, err := io.ReadAll(r)
		if err != nil {
			return PCM{}, errs.Wrap(errs.KindIO, "audio.Decode", "read pcm", err)
		}
		return PCM{Data: data, Format: Mono16k}, nil
	default:
		return PCM{}, errs.Newf(errs.KindConversion, "audio.Decode", "unsupported file type %q", ext)
	}
}

func decodeMP3(r io.Reader) (PCM, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return PCM{}, errs.Wrap(errs.KindConversion, "audio.decodeMP3", "invalid mp3 stream", err)
	}
	var buf bytes.Buffer
	if n := dec.Length(); n > 0 {
		buf.Grow(int(n))
	}
	if _, err := io.Copy(&buf, dec); err != nil {
		return PCM{}, errs.Wrap(errs.KindConversion, "audio.decodeMP3", "decode mp3", err)
	}
	// go-mp3 始终输出 16 位立体声
	return PCM{
		Data:   buf.Bytes(),
		Format: Format{SampleRate: dec.SampleRate(), Channels: 2, Encoding: EncodingS16LE},
	}, nil
}

func parseWAV(data []byte) (PCM, error) {
	const op = "audio.parseWAV"
	rs := bytes.NewReader(data)
	d := wav.NewDecoder(rs)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return PCM{}, errs.Wrap(errs.KindConversion, op, "invalid wav header", err)
	}
	if d.NumChans == 0 {
		return PCM{}, errs.New(errs.KindConversion, op, "missing fmt chunk")
	}

	tag := d.WavAudioFormat
	if tag == wavFormatExtensible {
		sub, err := extensibleSubFormat(data)
		if err != nil {
			return PCM{}, err
		}
		tag = sub
	}
	format, err := wavFormat(tag, int(d.BitDepth), int(d.NumChans), int(d.SampleRate))
	if err != nil {
		return PCM{}, err
	}

	if err := d.FwdToPCM(); err != nil {
		return PCM{}, errs.Wrap(errs.KindConversion, op, "no data chunk", err)
	}
	if d.PCMChunk == nil {
		return PCM{}, errs.New(errs.KindConversion, op, "no data chunk")
	}
	// 解码器停在 data 块开头；声明的长度超出文件时按实际数据截断，有的录音程序在未写完时留下错误的长度
	pcm := data[len(data)-rs.Len():]
	if n := int(d.PCMLen()); n > 0 && n < len(pcm) {
		pcm = pcm[:n]
	}
	if fb := format.FrameBytes(); fb > 0 {
		pcm = pcm[:len(pcm)/fb*fb]
	}
	return PCM{Data: pcm, Format: format}, nil
}

// extensibleSubFormat 读取 WAVE_FORMAT_EXTENSIBLE 的 SubFormat，
// GUID 的前两个字节就是实际的格式标签
func extensibleSubFormat(data []byte) (uint16, error) {
	const op = "audio.extensibleSubFormat"
	p := riff.New(bytes.NewReader(data))
	if err := p.ParseHeaders(); err != nil {
		return 0, errs.Wrap(errs.KindConversion, op, "invalid wav header", err)
	}
	for {
		ch, err := p.NextChunk()
		if err != nil {
			return 0, errs.Wrap(errs.KindConversion, op, "fmt chunk", err)
		}
		if ch.ID != riff.FmtID {
			ch.Drain()
			continue
		}
		body := make([]byte, ch.Size)
		if _, err := io.ReadFull(ch, body); err != nil || len(body) < 26 {
			return 0, errs.Wrap(errs.KindConversion, op, "extensible fmt chunk", io.ErrUnexpectedEOF)
		}
		return binary.LittleEndian.Uint16(body[24:26]), nil
	}
}

func wavFormat(tag uint16, bits, channels, rate int) (Format, error) {
	const op = "audio.wavFormat"
	var enc Encoding
	switch {
	case tag == wavFormatPCM && bits == 8:
		enc = EncodingU8
	case tag == wavFormatPCM && bits == 16:
		enc = EncodingS16LE
	case tag == wavFormatPCM && bits == 24:
		enc = EncodingS24LE
	case tag == wavFormatPCM && bits == 32:
		enc = EncodingS32LE
	case tag == wavFormatIEEEFloat && bits == 32:
		enc = EncodingF32LE
	case tag == wavFormatIEEEFloat && bits == 64:
		enc = EncodingF64LE
	default:
		return Format{}, errs.Newf(errs.KindConversion, op, "unsupported wav format tag 0x%04X with %d bits", tag, bits)
	}
	if channels <= 0 || rate <= 0 {
		return Format{}, errs.Newf(errs.KindConversion, op, "invalid wav format %dHz/%dch", rate, channels)
	}
	return Format{SampleRate: rate, Channels: channels, Encoding: enc}, nil
}
