package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/smoke-annotator/pkg/coords"
	"github.com/menta2k/smoke-annotator/pkg/types"
)

// Processor loads frame images and measures them for display
type Processor struct {
	httpClient *http.Client
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// LoadImageFromURL downloads and decodes a frame image
func (p *Processor) LoadImageFromURL(ctx context.Context, imageURL string) (image.Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "smoke-annotator/1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}
	if contentType := resp.Header.Get("Content-Type"); !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return p.DecodeImageFromBytes(data)
}

// LoadImage loads a frame from disk, applying EXIF orientation
func (p *Processor) LoadImage(path string) (image.Image, error) {
	if img, err := imaging.Open(path, imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	// Fallback: explicit WebP decode
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.Contains(strings.ToLower(path), ".webp") {
		if img, err := webp.Decode(f); err == nil {
			return img, nil
		}
	}
	if _, err := f.Seek(0, io.SeekStart); err == nil {
		if img, _, err := image.Decode(f); err == nil {
			return img, nil
		}
	}
	return nil, fmt.Errorf("image: unknown format for %s", path)
}

// LoadImageSmart loads an image from either a file path or URL
func (p *Processor) LoadImageSmart(ctx context.Context, source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadImageFromURL(ctx, source)
	}
	return p.LoadImage(source)
}

// DecodeImageFromBytes decodes an image from byte data with WebP support
func (p *Processor) DecodeImageFromBytes(data []byte) (image.Image, error) {
	if img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// NaturalSize returns the orientation-corrected pixel size of a loaded image
func NaturalSize(img image.Image) types.Size {
	b := img.Bounds()
	return types.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
}

// LoadImageSize measures a frame without keeping the pixels around
func (p *Processor) LoadImageSize(ctx context.Context, source string) (types.Size, error) {
	img, err := p.LoadImageSmart(ctx, source)
	if err == nil {
		return NaturalSize(img), nil
	}

	// Header-only fallback for files the full decoders reject
	f, ferr := os.Open(source)
	if ferr != nil {
		return types.Size{}, err
	}
	defer f.Close()

	if cfg, cerr := webp.DecodeConfig(f); cerr == nil {
		return types.Size{Width: float64(cfg.Width), Height: float64(cfg.Height)}, nil
	}
	if _, serr := f.Seek(0, io.SeekStart); serr == nil {
		if cfg, _, cerr := image.DecodeConfig(f); cerr == nil {
			return types.Size{Width: float64(cfg.Width), Height: float64(cfg.Height)}, nil
		}
	}
	return types.Size{}, fmt.Errorf("failed to measure %s: %w", source, err)
}

// DisplayInfo fits a natural image size into a container
func DisplayInfo(natural types.Size, container types.Size) types.ImageDisplayInfo {
	return coords.FitImageToContainer(natural.Width, natural.Height, container.Width, container.Height).DisplayInfo()
}

// RenderPreview draws the frame object-contain fitted into a container
// sized canvas, letterbox bands left black. An empty container returns the
// frame unchanged.
func (p *Processor) RenderPreview(img image.Image, container types.Size) image.Image {
	info := DisplayInfo(NaturalSize(img), container)
	w, h := int(math.Round(info.Width)), int(math.Round(info.Height))
	if w <= 0 || h <= 0 {
		return img
	}

	canvas := imaging.New(int(math.Round(container.Width)), int(math.Round(container.Height)), color.NRGBA{A: 255})
	fitted := imaging.Resize(img, w, h, imaging.Lanczos)
	return imaging.Paste(canvas, fitted, image.Pt(int(math.Round(info.OffsetX)), int(math.Round(info.OffsetY))))
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}
