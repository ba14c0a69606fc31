// Package client is the Go consumer of the itinerary API used by editor
// frontends. It keeps a TreeCache per plan and performs drag-and-drop moves
// optimistically: the cached tree is spliced before the request goes out,
// committed by a canonical refetch on success, and rolled back to the exact
// pre-move snapshot on failure.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"example.com/itinerary/internal/api"
	"example.com/itinerary/internal/cache"
	"example.com/itinerary/internal/domain"
	"example.com/itinerary/internal/reorder"
)

// Client talks to one plan's resources on behalf of an authenticated user.
// Callers must keep at most one move in flight per plan; a second concurrent
// move can roll back over the first one's optimistic state.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	cache   *cache.TreeCache
}

// New constructs a Client around an existing cache.
func New(baseURL, token string, treeCache *cache.TreeCache) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{},
		cache:   treeCache,
	}
}

// Tree exposes the cached plan tree for rendering.
func (c *Client) Tree() *domain.PlanTree {
	return c.cache.Tree()
}

// MoveFromDrop resolves a drag-release gesture against the cached tree and,
// when it maps to a real move, performs it. A gesture that resolves to
// nothing returns (false, nil).
func (c *Client) MoveFromDrop(ctx context.Context, draggedID, droppedOnID string) (bool, error) {
	target := reorder.Resolve(c.cache.Tree(), draggedID, droppedOnID)
	if target == nil {
		return false, nil
	}
	return true, c.Move(ctx, draggedID, target.DayID, target.Position)
}

// Move applies the move to the cache, sends it to the server, and reconciles.
// The optimistic splice tolerates stale caches: the request is sent even when
// the activity or day is no longer cached, since the server is authoritative.
func (c *Client) Move(ctx context.Context, activityID, targetDayID string, targetPosition int) error {
	snapshot := c.cache.Snapshot()
	c.cache.ApplyMove(activityID, targetDayID, targetPosition)

	if err := c.postMove(ctx, activityID, targetDayID, targetPosition); err != nil {
		c.cache.Restore(snapshot)
		return err
	}

	if snapshot != nil {
		if tree, err := c.FetchPlan(ctx, snapshot.Plan.ID); err == nil {
			c.cache.Replace(tree)
		}
	}
	return nil
}

// FetchPlan retrieves the canonical plan tree from the server.
func (c *Client) FetchPlan(ctx context.Context, planID string) (*domain.PlanTree, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/plans/"+planID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var view api.PlanTreeView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, err
	}
	return treeFromView(view), nil
}

func (c *Client) postMove(ctx context.Context, activityID, targetDayID string, targetPosition int) error {
	body, err := json.Marshal(api.MoveActivityRequest{
		TargetDayID:    targetDayID,
		TargetPosition: targetPosition,
	})
	if err != nil {
		return err
	}

	url := c.baseURL + "/v1/activities/" + activityID + "/move"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func decodeError(resp *http.Response) error {
	var payload struct {
		Type   string `json:"type"`
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Type == "" {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return fmt.Errorf("%s: %s", payload.Type, payload.Detail)
}

func treeFromView(view api.PlanTreeView) *domain.PlanTree {
	tree := &domain.PlanTree{
		Plan: domain.Plan{
			ID:        view.PlanID,
			OwnerID:   view.OwnerID,
			Title:     view.Title,
			StartsOn:  view.StartsOn,
			EndsOn:    view.EndsOn,
			CreatedAt: view.CreatedAt,
			UpdatedAt: view.UpdatedAt,
		},
		Days: make([]domain.DayTree, 0, len(view.Days)),
	}
	for _, day := range view.Days {
		dt := domain.DayTree{
			Day: domain.Day{
				ID:     day.DayID,
				PlanID: view.PlanID,
				Seq:    day.Seq,
				Date:   day.Date,
			},
			Activities: make([]domain.Activity, 0, len(day.Activities)),
		}
		for _, a := range day.Activities {
			dt.Activities = append(dt.Activities, domain.Activity{
				ID:          a.ActivityID,
				DayID:       a.DayID,
				Position:    a.Position,
				Title:       a.Title,
				DurationMin: a.DurationMin,
				TransitMin:  a.TransitMin,
				CreatedAt:   a.CreatedAt,
				UpdatedAt:   a.UpdatedAt,
			})
		}
		tree.Days = append(tree.Days, dt)
	}
	return tree
}
