package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/image/draw"
)

// ImageHandler proxies poster and thumbnail images with resize and caching,
// so clients do not hit the upstream image CDN directly.
type ImageHandler struct {
	fs         afero.Fs
	cacheDir   string
	httpc      *http.Client
	mu         sync.Mutex
	inProgress map[string]chan struct{} // prevent duplicate fetches
}

// NewImageHandler creates an image proxy caching into cacheDir on fs.
func NewImageHandler(fs afero.Fs, cacheDir string) *ImageHandler {
	imgCacheDir := filepath.Join(cacheDir, "images")
	if err := fs.MkdirAll(imgCacheDir, 0o755); err != nil {
		log.Printf("[image] could not create cache dir %s: %v", imgCacheDir, err)
	}

	return &ImageHandler{
		fs:       fs,
		cacheDir: imgCacheDir,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
		inProgress: make(map[string]chan struct{}),
	}
}

// Proxy handles image proxy requests.
// Query params:
//   - url: source image URL (required, TMDB/YouTube hosts only)
//   - w: target width (optional, default original)
//   - q: JPEG quality 1-100 (optional, default 80)
func (h *ImageHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	sourceURL := r.URL.Query().Get("url")
	if sourceURL == "" {
		writeError(w, http.StatusBadRequest, "url parameter required")
		return
	}
	if !strings.Contains(sourceURL, "image.tmdb.org") && !strings.Contains(sourceURL, "img.youtube.com") {
		writeError(w, http.StatusForbidden, "url not allowed")
		return
	}

	targetWidth := 0
	if wStr := r.URL.Query().Get("w"); wStr != "" {
		if v, err := strconv.Atoi(wStr); err == nil && v > 0 && v <= 2000 {
			targetWidth = v
		}
	}
	quality := 80
	if qStr := r.URL.Query().Get("q"); qStr != "" {
		if q, err := strconv.Atoi(qStr); err == nil && q >= 1 && q <= 100 {
			quality = q
		}
	}

	cacheKey := h.cacheKey(sourceURL, targetWidth, quality)
	cachePath := filepath.Join(h.cacheDir, cacheKey+".jpg")

	if h.serveCached(w, cachePath) {
		return
	}

	// Collapse concurrent requests for the same image into one fetch.
	h.mu.Lock()
	if ch, exists := h.inProgress[cacheKey]; exists {
		h.mu.Unlock()
		<-ch
		if h.serveCached(w, cachePath) {
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load image")
		return
	}
	ch := make(chan struct{})
	h.inProgress[cacheKey] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.inProgress, cacheKey)
		close(ch)
		h.mu.Unlock()
	}()

	resp, err := h.httpc.Get(sourceURL)
	if err != nil {
		log.Printf("[image] fetch error for %s: %v", sourceURL, err)
		writeError(w, http.StatusBadGateway, "failed to fetch image")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[image] fetch returned %d for %s", resp.StatusCode, sourceURL)
		writeError(w, resp.StatusCode, "image source error")
		return
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		log.Printf("[image] decode error for %s: %v", sourceURL, err)
		writeError(w, http.StatusInternalServerError, "failed to decode image")
		return
	}

	if targetWidth > 0 {
		img = downscale(img, targetWidth)
	}

	if err := h.writeCache(cachePath, img, quality); err != nil {
		log.Printf("[image] cache write error: %v", err)
		// Serve without caching.
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("X-Cache", "MISS-NOCACHE")
		_ = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
		return
	}

	if !h.serveCached(w, cachePath) {
		writeError(w, http.StatusInternalServerError, "failed to read cached image")
	}
}

func (h *ImageHandler) serveCached(w http.ResponseWriter, cachePath string) bool {
	data, err := afero.ReadFile(h.fs, cachePath)
	if err != nil {
		return false
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=2592000") // 30 days
	_, _ = w.Write(data)
	return true
}

func (h *ImageHandler) writeCache(cachePath string, img image.Image, quality int) error {
	tmpPath := cachePath + ".tmp"
	f, err := h.fs.Create(tmpPath)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		_ = h.fs.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		_ = h.fs.Remove(tmpPath)
		return err
	}
	return h.fs.Rename(tmpPath, cachePath)
}

func (h *ImageHandler) cacheKey(url string, width, quality int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", url, width, quality)))
	return hex.EncodeToString(sum[:16])
}

func downscale(img image.Image, targetWidth int) image.Image {
	bounds := img.Bounds()
	origWidth := bounds.Dx()
	if targetWidth >= origWidth {
		return img
	}

	ratio := float64(targetWidth) / float64(origWidth)
	targetHeight := int(float64(bounds.Dy()) * ratio)

	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	// CatmullRom for high quality downscaling.
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
