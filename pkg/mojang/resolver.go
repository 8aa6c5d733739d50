package mojang

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
	"github.com/google/uuid"
)

// DefaultBaseURL is the Mojang profile API endpoint.
const DefaultBaseURL = "https://api.mojang.com"

const requestTimeout = 5 * time.Second

// Profile is a resolved game account: the UUID and the canonically-cased name.
type Profile struct {
	UUID uuid.UUID
	Name string
}

// LookupError describes a failed profile lookup.
type LookupError struct {
	Name       string
	StatusCode int
	Cause      error
}

func (e LookupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("mojang lookup for %q failed: %v", e.Name, e.Cause)
	}
	return fmt.Sprintf("mojang lookup for %q failed with status %d", e.Name, e.StatusCode)
}

func (e LookupError) Unwrap() error {
	return e.Cause
}

// Resolver resolves Minecraft usernames to profiles via the Mojang HTTP API.
// It is only used by moderation flows, never on the login path.
type Resolver struct {
	baseURL string
	client  *httpclient.Client
}

// NewResolver creates a resolver against the public Mojang API.
func NewResolver() *Resolver {
	return NewResolverWithBaseURL(DefaultBaseURL)
}

// NewResolverWithBaseURL creates a resolver against an alternate endpoint.
func NewResolverWithBaseURL(baseURL string) *Resolver {
	return &Resolver{
		baseURL: baseURL,
		client: httpclient.NewClient(
			httpclient.WithHTTPTimeout(requestTimeout),
			httpclient.WithRetryCount(2),
			httpclient.WithRetrier(heimdall.NewRetrier(
				heimdall.NewConstantBackoff(200*time.Millisecond, 50*time.Millisecond),
			)),
		),
	}
}

// LookupProfile resolves name to its UUID and canonical spelling. Any
// non-200 response, network failure or parse failure is an error.
func (r *Resolver) LookupProfile(name string) (Profile, error) {
	reqURL := fmt.Sprintf("%s/users/profiles/minecraft/%s", r.baseURL, url.PathEscape(name))

	res, err := r.client.Get(reqURL, nil)
	if err != nil {
		return Profile{}, LookupError{Name: name, Cause: err}
	}
	defer res.Body.Close()

	if res.StatusCode != 200 {
		return Profile{}, LookupError{Name: name, StatusCode: res.StatusCode}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Profile{}, LookupError{Name: name, Cause: err}
	}

	var payload struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Profile{}, LookupError{Name: name, Cause: err}
	}

	// The API returns the UUID as 32 undashed hex characters.
	id, err := uuid.Parse(payload.ID)
	if err != nil {
		return Profile{}, LookupError{Name: name, Cause: fmt.Errorf("invalid profile id %q: %w", payload.ID, err)}
	}

	return Profile{UUID: id, Name: payload.Name}, nil
}
