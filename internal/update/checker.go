package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adamancini/updraft/internal/logging"
)

// DefaultRequestTimeout bounds a single update-check request.
const DefaultRequestTimeout = 30 * time.Second

// Checker asks the update server whether a newer version exists.
type Checker interface {
	Check(ctx context.Context) (Outcome, error)
}

// HTTPChecker queries {serverURL}/api/updates/{applicationID}.
type HTTPChecker struct {
	serverURL      string
	applicationID  string
	currentVersion string
	platform       Platform
	language       string
	clientID       string
	client         *http.Client
	comparer       *Comparer
	log            logrus.FieldLogger
}

// NewHTTPChecker creates a checker for applicationID at serverURL.
func NewHTTPChecker(serverURL, applicationID, currentVersion string, log logrus.FieldLogger) *HTTPChecker {
	log = logging.OrDiscard(log)
	return &HTTPChecker{
		serverURL:      strings.TrimRight(serverURL, "/"),
		applicationID:  applicationID,
		currentVersion: currentVersion,
		platform:       Detect(),
		client: &http.Client{
			Timeout: DefaultRequestTimeout,
		},
		comparer: NewComparer(log),
		log:      log,
	}
}

// WithPlatform overrides the detected platform reported to the server.
func (c *HTTPChecker) WithPlatform(p Platform) *HTTPChecker {
	if p.OS != "" {
		c.platform.OS = p.OS
	}
	if p.Arch != "" {
		c.platform.Arch = p.Arch
	}
	return c
}

// WithLanguage sets the language query parameter.
func (c *HTTPChecker) WithLanguage(lang string) *HTTPChecker {
	c.language = lang
	return c
}

// WithClientID sets the clientId query parameter.
func (c *HTTPChecker) WithClientID(id string) *HTTPChecker {
	c.clientID = id
	return c
}

// WithHTTPClient replaces the HTTP client.
func (c *HTTPChecker) WithHTTPClient(client *http.Client) *HTTPChecker {
	if client != nil {
		c.client = client
	}
	return c
}

// Check fetches the update descriptor and decides eligibility. A 404 from the
// server means no update exists and is not an error. The returned outcome is
// UpdateAvailable only when the candidate is newer, the current version meets
// the candidate's minimum, and the metadata allows this platform.
func (c *HTTPChecker) Check(ctx context.Context) (Outcome, error) {
	if c.serverURL == "" || c.applicationID == "" {
		return Outcome{}, Validationf("server url and application id are required")
	}

	endpoint, err := c.endpoint()
	if err != nil {
		return Outcome{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Outcome{}, Validationf("build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	log := c.log.WithField("url", endpoint)
	log.Debug("Checking for updates")

	resp, err := c.client.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("update check request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		log.Debug("Server has no update information")
		return NoUpdate(nil), nil
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Outcome{}, fmt.Errorf("update server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var desc UpdateDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return Outcome{}, fmt.Errorf("failed to decode update descriptor: %w", err)
	}

	return c.evaluate(&desc), nil
}

func (c *HTTPChecker) evaluate(desc *UpdateDescriptor) Outcome {
	log := c.log.WithFields(logrus.Fields{
		"current":   c.currentVersion,
		"candidate": desc.Version,
	})

	if !c.comparer.IsNewer(c.currentVersion, desc.Version) {
		log.Debug("Candidate is not newer")
		return NoUpdate(desc)
	}
	if !c.comparer.MeetsMinimum(c.currentVersion, desc.MinimumVersion) {
		log.WithField("minimum", desc.MinimumVersion).Info("Current version is below the update's minimum version")
		return NoUpdate(desc)
	}
	if !c.platform.Compatible(desc.Metadata) {
		log.WithFields(logrus.Fields{
			"platform":     c.platform.OS,
			"architecture": c.platform.Arch,
		}).Info("Update does not target this platform")
		return NoUpdate(desc)
	}

	log.Info("Update available")
	return Available(desc)
}

func (c *HTTPChecker) endpoint() (string, error) {
	base, err := url.Parse(c.serverURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", Validationf("invalid server url %q", c.serverURL)
	}

	u := base.JoinPath("api", "updates", c.applicationID)
	q := url.Values{}
	q.Set("currentVersion", c.currentVersion)
	q.Set("platform", c.platform.OS)
	q.Set("architecture", c.platform.Arch)
	q.Set("language", c.language)
	q.Set("clientId", c.clientID)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
