// Package usersync periodically pulls users from an external API and
// appends the ones not yet present in a local CSV file.
package usersync

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const maxResponseBytes = 4 << 20

var csvHeader = []string{"id", "name", "email"}

type Config struct {
	SourceURL string        `envconfig:"SOURCE_URL" split_words:"true" default:"https://jsonplaceholder.typicode.com/users"`
	CSVPath   string        `envconfig:"CSV_PATH" split_words:"true" default:"users.csv"`
	Interval  time.Duration `envconfig:"INTERVAL" split_words:"true" default:"30m"`
	Timeout   time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
}

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Syncer struct {
	sourceURL  string
	csvPath    string
	httpClient *http.Client
}

func New(cfg Config) *Syncer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Syncer{
		sourceURL:  cfg.SourceURL,
		csvPath:    cfg.CSVPath,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Run syncs on the given interval until ctx is done. One sync runs
// immediately on start.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	if n, err := s.SyncOnce(ctx); err != nil {
		log.Error().Err(err).Msg("user sync failed")
	} else {
		log.Info().Int("added", n).Msg("user sync done")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SyncOnce(ctx); err != nil {
				log.Error().Err(err).Msg("user sync failed")
			} else {
				log.Info().Int("added", n).Msg("user sync done")
			}
		}
	}
}

// SyncOnce fetches users and appends the unseen ones to the CSV. Returns
// how many rows were added.
func (s *Syncer) SyncOnce(ctx context.Context) (int, error) {
	users, err := s.fetch(ctx)
	if err != nil {
		return 0, err
	}
	if len(users) == 0 {
		return 0, nil
	}

	existing, err := existingIDs(s.csvPath)
	if err != nil {
		return 0, err
	}

	var fresh []User
	for _, u := range users {
		if _, ok := existing[u.ID]; !ok {
			fresh = append(fresh, u)
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	if err := appendUsers(s.csvPath, fresh); err != nil {
		return 0, err
	}
	return len(fresh), nil
}

func (s *Syncer) fetch(ctx context.Context) ([]User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build users request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch users: status=%d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read users response: %w", err)
	}

	var users []User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("decode users response: %w", err)
	}
	return users, nil
}

func existingIDs(path string) (map[int64]struct{}, error) {
	ids := make(map[int64]struct{})

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return ids, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		id, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		ids[id] = struct{}{}
	}
	return ids, nil
}

func appendUsers(path string, users []User) error {
	_, statErr := os.Stat(path)
	writeHeader := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s for append: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, u := range users {
		row := []string{strconv.FormatInt(u.ID, 10), u.Name, u.Email}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}
