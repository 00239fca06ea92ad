package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"dictation/internal/logging"
	"dictation/internal/models"
)

// DefaultTTSEndpoint is Google Translate's speech endpoint
const DefaultTTSEndpoint = "https://translate.google.com/translate_tts"

const (
	ttsRequestTimeout = 10 * time.Second
	ttsUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// ErrEmptyText is returned when asked to speak a blank word
var ErrEmptyText = errors.New("text is empty")

// TTSService generates pronunciation clips into <dir>/<lang>/<level>/
type TTSService struct {
	audioDir string
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// TTSOption configures a TTSService
type TTSOption func(*TTSService)

// WithEndpoint overrides the speech endpoint
func WithEndpoint(endpoint string) TTSOption {
	return func(s *TTSService) {
		s.endpoint = endpoint
	}
}

// WithHTTPClient sets the client used for speech requests
func WithHTTPClient(c *http.Client) TTSOption {
	return func(s *TTSService) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTTSLogger sets the logger
func WithTTSLogger(l *zap.Logger) TTSOption {
	return func(s *TTSService) {
		s.logger = logging.OrNop(l)
	}
}

// NewTTSService creates a new TTS service writing under audioDir
func NewTTSService(audioDir string, opts ...TTSOption) *TTSService {
	s := &TTSService{
		audioDir: audioDir,
		endpoint: DefaultTTSEndpoint,
		client:   &http.Client{Timeout: ttsRequestTimeout},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LevelDir is the directory holding the clips of one level
func (s *TTSService) LevelDir(lang models.Language, level models.Level) string {
	return filepath.Join(s.audioDir, string(lang), string(level))
}

// GenerateClip speaks text in lang and saves it as filename within the level
// directory. Existing files are left untouched; created reports whether a new
// file was written.
func (s *TTSService) GenerateClip(ctx context.Context, lang models.Language, level models.Level, text, filename string) (created bool, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, ErrEmptyText
	}
	if !lang.Valid() {
		return false, models.ErrUnsupportedLanguage
	}

	dir := s.LevelDir(lang, level)
	target := filepath.Join(dir, ClipName(filename, text))
	if _, err := os.Stat(target); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create audio directory: %w", err)
	}

	if err := s.fetch(ctx, lang, text, target); err != nil {
		return false, fmt.Errorf("failed to generate audio: %w", err)
	}
	return true, nil
}

// ClipName picks the file name a clip is stored under: the base of file if
// set, otherwise one derived from the word.
func ClipName(file, word string) string {
	if base := path.Base(strings.ReplaceAll(file, "\\", "/")); file != "" && base != "." && base != "/" {
		return base
	}
	sanitized := strings.ToLower(strings.TrimSpace(word))
	sanitized = strings.ReplaceAll(sanitized, " ", "_")
	return fmt.Sprintf("word_%s.mp3", sanitized)
}

func (s *TTSService) fetch(ctx context.Context, lang models.Language, text, outputPath string) error {
	params := url.Values{}
	params.Set("ie", "UTF-8")
	params.Set("q", text)
	params.Set("tl", lang.TTSCode())
	params.Set("client", "tw-ob")
	params.Set("textlen", strconv.Itoa(len([]rune(text))))

	ctx, cancel := context.WithTimeout(ctx, ttsRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", ttsUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	// A failed download must not leave a partial clip behind.
	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".clip-*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	return os.Rename(tmp.Name(), outputPath)
}

// GenerateReport summarises a batch run
type GenerateReport struct {
	Created  int
	Existing int
	Failed   map[string]error
}

// GenerateMissing creates clips for every entry of a level that has none yet.
// Individual failures are collected rather than aborting the batch; only a
// cancelled context stops it early.
func (s *TTSService) GenerateMissing(ctx context.Context, lang models.Language, level models.Level, entries []models.WordEntry) (GenerateReport, error) {
	report := GenerateReport{Failed: make(map[string]error)}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		created, err := s.GenerateClip(ctx, lang, level, entry.Word, entry.AudioPath)
		switch {
		case err != nil:
			report.Failed[entry.Word] = err
			s.logger.Warn("clip generation failed",
				zap.String("language", string(lang)),
				zap.String("level", string(level)),
				zap.String("word", entry.Word),
				zap.Error(err))
		case created:
			report.Created++
		default:
			report.Existing++
		}
	}

	s.logger.Info("clip generation finished",
		zap.String("language", string(lang)),
		zap.String("level", string(level)),
		zap.Int("created", report.Created),
		zap.Int("existing", report.Existing),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}

// DeleteClip removes a clip; a missing file is not an error
func (s *TTSService) DeleteClip(lang models.Language, level models.Level, filename string) error {
	err := os.Remove(filepath.Join(s.LevelDir(lang, level), filepath.Base(filename)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Clips lists the MP3 files of a level in name order
func (s *TTSService) Clips(lang models.Language, level models.Level) ([]string, error) {
	files, err := os.ReadDir(s.LevelDir(lang, level))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read audio directory: %w", err)
	}

	var clips []string
	for _, file := range files {
		if !file.IsDir() && filepath.Ext(file.Name()) == ".mp3" {
			clips = append(clips, file.Name())
		}
	}
	sort.Strings(clips)
	return clips, nil
}
