package plex

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"dvrmanager/internal/config"
)

const userAgent = "dvr-manager/0.1.0"

// Service triggers library scans on a media server after files land.
type Service interface {
	// RefreshMovies asks the server to rescan the movie section.
	RefreshMovies(ctx context.Context) error
	// RefreshTV asks the server to rescan the TV section.
	RefreshTV(ctx context.Context) error
}

// NewService builds a Plex refresh service from configuration. When the
// integration is disabled or no token can be resolved, a noop implementation
// is returned so callers never need to branch.
func NewService(cfg *config.Config) Service {
	if !cfg.Plex.Enabled {
		return noopService{}
	}

	token := strings.TrimSpace(cfg.Plex.Token)
	if token == "" {
		fileToken, err := TokenFromPreferences(cfg.Plex.PrefsPath)
		if err != nil || fileToken == "" {
			return noopService{}
		}
		token = fileToken
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.Plex.URL), "/")
	if baseURL == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Plex.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &httpService{
		baseURL:        baseURL,
		token:          token,
		tvSectionID:    strings.TrimSpace(cfg.Plex.TVSectionID),
		movieSectionID: strings.TrimSpace(cfg.Plex.MovieSectionID),
		client:         &http.Client{Timeout: timeout},
	}
}

type httpService struct {
	baseURL        string
	token          string
	tvSectionID    string
	movieSectionID string
	client         *http.Client

	mu       sync.Mutex
	sections map[string]string
}

func (s *httpService) RefreshMovies(ctx context.Context) error {
	return s.refresh(ctx, s.movieSectionID, "movie")
}

func (s *httpService) RefreshTV(ctx context.Context) error {
	return s.refresh(ctx, s.tvSectionID, "show")
}

func (s *httpService) refresh(ctx context.Context, sectionID, sectionType string) error {
	if sectionID == "" {
		sections, err := s.ensureSections(ctx)
		if err != nil {
			return err
		}
		key, ok := sections[sectionType]
		if !ok {
			return fmt.Errorf("plex has no %s section", sectionType)
		}
		sectionID = key
	}

	refreshURL := fmt.Sprintf("%s/library/sections/%s/refresh", s.baseURL, sectionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, refreshURL, nil)
	if err != nil {
		return fmt.Errorf("build plex refresh request: %w", err)
	}
	s.decorate(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("refresh plex library: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("plex refresh returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// ensureSections discovers section keys once and caches them by section type
// ("movie", "show") for the lifetime of the service.
func (s *httpService) ensureSections(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sections != nil {
		return s.sections, nil
	}

	sectionsURL := s.baseURL + "/library/sections"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sectionsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build plex sections request: %w", err)
	}
	s.decorate(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch plex sections: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("plex sections returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	type directory struct {
		Key  string `xml:"key,attr"`
		Type string `xml:"type,attr"`
	}
	type mediaContainer struct {
		Directories []directory `xml:"Directory"`
	}

	var container mediaContainer
	if err := xml.NewDecoder(resp.Body).Decode(&container); err != nil {
		return nil, fmt.Errorf("decode plex sections: %w", err)
	}

	sections := make(map[string]string, len(container.Directories))
	for _, dir := range container.Directories {
		if dir.Key == "" || dir.Type == "" {
			continue
		}
		// First section of each type wins.
		if _, ok := sections[dir.Type]; !ok {
			sections[dir.Type] = dir.Key
		}
	}
	s.sections = sections
	return sections, nil
}

func (s *httpService) decorate(req *http.Request) {
	req.Header.Set("X-Plex-Token", s.token)
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("User-Agent", userAgent)
}

type noopService struct{}

func (noopService) RefreshMovies(context.Context) error { return nil }
func (noopService) RefreshTV(context.Context) error     { return nil }
