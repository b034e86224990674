package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Membership is one universe a task belongs to.
type Membership struct {
	UniverseItemID uint   `json:"universe_item_id"`
	UniverseID     uint   `json:"universe_id"`
	Name           string `json:"name"`
	IsPrimary      bool   `json:"is_primary"`
	Order          *int   `json:"order"`
}

// Task mirrors the server's task representation.
type Task struct {
	ID              uint         `json:"id"`
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	DeadlineAt      *time.Time   `json:"deadline_at"`
	CompletedAt     *time.Time   `json:"completed_at"`
	SkippedAt       *time.Time   `json:"skipped_at"`
	Status          string       `json:"status"`
	DisplayStatus   string       `json:"display_status"`
	RecurringTaskID *uint        `json:"recurring_task_id"`
	RecurringTask   string       `json:"recurring_task_name"`
	SkipVisible     bool         `json:"skip_visible"`
	EstimatedTime   *int         `json:"estimated_time"`
	UniverseIDs     []uint       `json:"universe_ids"`
	PrimaryUniverse int          `json:"primary_universe"`
	Universes       []Membership `json:"universes"`
}

type Universe struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	ParentID      *uint  `json:"parent_id"`
	Status        string `json:"status"`
	DisplayStatus string `json:"display_status"`
	WeeklyOrder   *int   `json:"weekly_order"`
}

type RecurringTask struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	FrequencyUnit string `json:"frequency_unit"`
	EstimatedTime *int   `json:"estimated_time"`
}

// OrderUpdate moves one universe item to a new position.
type OrderUpdate struct {
	UniverseItemID uint `json:"universe_item_id"`
	Order          int  `json:"order"`
}

// Created is the answer to a task creation: the task and its card markup.
type Created struct {
	Task Task
	HTML string
}

func decodeTask(env *Envelope) (*Task, error) {
	var t Task
	if err := env.Decode("task", &t); err != nil {
		return nil, &Error{Kind: KindNotJSON, Err: err}
	}
	return &t, nil
}

func (c *Client) Task(ctx context.Context, id uint) (*Task, error) {
	env, err := c.Get(ctx, fmt.Sprintf("/tasks/%d", id))
	if err != nil {
		return nil, err
	}
	return decodeTask(env)
}

// Tasks lists all tasks, or the tasks of one universe when universeID is set.
func (c *Client) Tasks(ctx context.Context, universeID *uint) ([]Task, error) {
	path := "/tasks"
	if universeID != nil {
		path += "?universe_id=" + strconv.FormatUint(uint64(*universeID), 10)
	}
	env, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	var tasks []Task
	if err := env.Decode("tasks", &tasks); err != nil {
		return nil, &Error{Kind: KindNotJSON, Err: err}
	}
	return tasks, nil
}

// CreateTask posts the new-task form. primary indexes universeIDs.
func (c *Client) CreateTask(ctx context.Context, name string, universeIDs []uint, primary int) (*Created, error) {
	fields := url.Values{"name": {name}, "status": {"open"}}
	for _, id := range universeIDs {
		fields.Add("universe_ids[]", strconv.FormatUint(uint64(id), 10))
	}
	fields.Set("primary_universe", strconv.Itoa(primary))
	env, err := c.PostForm(ctx, "/tasks", fields)
	if err != nil {
		return nil, err
	}
	t, err := decodeTask(env)
	if err != nil {
		return nil, err
	}
	var html string
	_ = env.Decode("html", &html)
	return &Created{Task: *t, HTML: html}, nil
}

// UpdateTask sends a full task representation as a PUT form.
func (c *Client) UpdateTask(ctx context.Context, id uint, fields url.Values) (*Task, error) {
	return c.put(ctx, fmt.Sprintf("/tasks/%d", id), fields)
}

func (c *Client) put(ctx context.Context, path string, fields url.Values) (*Task, error) {
	body := url.Values{"_method": {"PUT"}}
	for k, v := range fields {
		body[k] = v
	}
	env, err := c.PostForm(ctx, path, body)
	if err != nil {
		return nil, err
	}
	if _, ok := env.Data["task"]; !ok {
		return nil, nil
	}
	return decodeTask(env)
}

// UpdateUniverse sends a full universe representation as a PUT form.
func (c *Client) UpdateUniverse(ctx context.Context, id uint, fields url.Values) error {
	_, err := c.put(ctx, fmt.Sprintf("/universes/%d", id), fields)
	return err
}

func (c *Client) CompleteTask(ctx context.Context, id uint) (*Task, error) {
	return c.taskAction(ctx, id, "complete")
}

func (c *Client) SkipTask(ctx context.Context, id uint) (*Task, error) {
	return c.taskAction(ctx, id, "skip")
}

func (c *Client) UnskipTask(ctx context.Context, id uint) (*Task, error) {
	return c.taskAction(ctx, id, "unskip")
}

func (c *Client) taskAction(ctx context.Context, id uint, action string) (*Task, error) {
	env, err := c.PostForm(ctx, fmt.Sprintf("/tasks/%d/%s", id, action), nil)
	if err != nil {
		return nil, err
	}
	return decodeTask(env)
}

func (c *Client) DeleteTask(ctx context.Context, id uint) error {
	_, err := c.Delete(ctx, fmt.Sprintf("/tasks/%d", id))
	return err
}

func (c *Client) DeleteUniverse(ctx context.Context, id uint) error {
	_, err := c.Delete(ctx, fmt.Sprintf("/universes/%d", id))
	return err
}

// LogTime posts a time log. resource is "tasks", "universes" or "ideas";
// an empty resource posts a standalone log.
func (c *Client) LogTime(ctx context.Context, resource string, id uint, minutes *int, notes string) error {
	fields := url.Values{"notes": {notes}}
	if minutes != nil {
		fields.Set("minutes", strconv.Itoa(*minutes))
	}
	path := "/logs"
	if resource != "" {
		path = fmt.Sprintf("/%s/%d/log", resource, id)
	}
	_, err := c.PostForm(ctx, path, fields)
	return err
}

// UpdateOrder reorders items within one universe.
func (c *Client) UpdateOrder(ctx context.Context, universeID uint, updates []OrderUpdate) error {
	_, err := c.PostJSON(ctx, "/tasks/update-order", map[string]any{
		"universe_id": universeID,
		"updates":     updates,
	})
	return err
}

// UpdateWeeklyOrder sets the weekly order of universes. Nil clears it.
func (c *Client) UpdateWeeklyOrder(ctx context.Context, orders map[uint]*int) error {
	type entry struct {
		UniverseID  uint `json:"universe_id"`
		WeeklyOrder *int `json:"weekly_order"`
	}
	body := make([]entry, 0, len(orders))
	for id, o := range orders {
		body = append(body, entry{UniverseID: id, WeeklyOrder: o})
	}
	_, err := c.PostJSON(ctx, "/universes/update-weekly-order", map[string]any{"orders": body})
	return err
}

func (c *Client) Universes(ctx context.Context) ([]Universe, error) {
	env, err := c.Get(ctx, "/universes")
	if err != nil {
		return nil, err
	}
	var out []Universe
	if err := env.Decode("universes", &out); err != nil {
		return nil, &Error{Kind: KindNotJSON, Err: err}
	}
	return out, nil
}

func (c *Client) Universe(ctx context.Context, id uint) (*Universe, error) {
	env, err := c.Get(ctx, fmt.Sprintf("/universes/%d", id))
	if err != nil {
		return nil, err
	}
	var u Universe
	if err := env.Decode("universe", &u); err != nil {
		return nil, &Error{Kind: KindNotJSON, Err: err}
	}
	return &u, nil
}

func (c *Client) RecurringTasks(ctx context.Context) ([]RecurringTask, error) {
	env, err := c.Get(ctx, "/recurring-tasks")
	if err != nil {
		return nil, err
	}
	var out []RecurringTask
	if err := env.Decode("recurring_tasks", &out); err != nil {
		return nil, &Error{Kind: KindNotJSON, Err: err}
	}
	return out, nil
}
