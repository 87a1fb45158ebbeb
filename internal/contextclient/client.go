// Package contextclient calls the user-context endpoint consumed by the chat
// UI: profile facts, interests, goals, traits, and connections.
package contextclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Entry types accepted by the update endpoint.
const (
	TypeProfile    = "profile"
	TypeInterest   = "interest"
	TypeGoal       = "goal"
	TypeTrait      = "trait"
	TypeConnection = "connection"
)

type UserProfile struct {
	Name       string `json:"name,omitempty"`
	Age        int    `json:"age,omitempty"`
	Location   string `json:"location,omitempty"`
	Language   string `json:"language,omitempty"`
	Occupation string `json:"occupation,omitempty"`
	Background string `json:"background,omitempty"`
}

type Interest struct {
	ID       string `json:"id"`
	Interest string `json:"interest"`
}

type Goal struct {
	ID        string `json:"id"`
	Goal      string `json:"goal"`
	Completed bool   `json:"completed"`
}

type Trait struct {
	ID    string `json:"id"`
	Trait string `json:"trait"`
}

type ConnectionDetails struct {
	Notes     string   `json:"notes,omitempty"`
	Interests []string `json:"interests,omitempty"`
	Birthday  string   `json:"birthday,omitempty"`
}

type Connection struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Relationship string             `json:"relationship"`
	Details      *ConnectionDetails `json:"details,omitempty"`
}

// UserContext is the full context payload returned by the endpoint.
type UserContext struct {
	Profile     UserProfile  `json:"profile"`
	Interests   []Interest   `json:"interests"`
	Goals       []Goal       `json:"goals"`
	Traits      []Trait      `json:"traits"`
	Connections []Connection `json:"connections"`
}

// Client calls the context API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a context API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Fetch returns the caller's full user context.
func (c *Client) Fetch() (UserContext, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/api/context")
	if err != nil {
		return UserContext{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return UserContext{}, decodeAPIError(resp)
	}
	var ctx UserContext
	if err := json.NewDecoder(resp.Body).Decode(&ctx); err != nil {
		return UserContext{}, err
	}
	return ctx, nil
}

// UpdateProfile merges the given fields into the stored profile.
func (c *Client) UpdateProfile(profile UserProfile) error {
	return c.post(TypeProfile, profile, nil)
}

// AddInterest appends an interest and returns the created entry.
func (c *Client) AddInterest(interest string) (Interest, error) {
	var created Interest
	err := c.post(TypeInterest, map[string]any{"interest": interest}, &created)
	return created, err
}

// AddGoal appends an incomplete goal and returns the created entry.
func (c *Client) AddGoal(goal string) (Goal, error) {
	var created Goal
	err := c.post(TypeGoal, map[string]any{"goal": goal, "completed": false}, &created)
	return created, err
}

// AddTrait appends a trait and returns the created entry.
func (c *Client) AddTrait(trait string) (Trait, error) {
	var created Trait
	err := c.post(TypeTrait, map[string]any{"trait": trait}, &created)
	return created, err
}

// AddConnection appends a connection and returns the created entry.
func (c *Client) AddConnection(connection Connection) (Connection, error) {
	var created Connection
	err := c.post(TypeConnection, connection, &created)
	return created, err
}

func (c *Client) post(entryType string, data any, out any) error {
	body, err := json.Marshal(map[string]any{"type": entryType, "data": data})
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Post(c.baseURL+"/api/context", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Message != "" {
		apiErr.Message = payload.Message
	}
	return apiErr
}

// APIError represents a context API error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("context api: %s", e.Message)
}
