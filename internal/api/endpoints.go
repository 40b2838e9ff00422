package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"eventchat/internal/chat"
	"eventchat/internal/fragment"
	"eventchat/internal/rsvp"
	"eventchat/internal/tasks"
)

const (
	LoginPath       = "/login"
	SearchUsersPath = "/search-users/"
	maxPageBody     = 1 << 20
)

func ChatsPath(eventPK int64) string { return fmt.Sprintf("/api/events/%d/chats/", eventPK) }
func MessagesPath(chatID int64) string { return fmt.Sprintf("/api/chats/%d/messages/", chatID) }
func AddMessagePath(chatID int64) string { return fmt.Sprintf("/api/chats/%d/messages/add/", chatID) }
func EventPath(eventPK int64) string { return fmt.Sprintf("/events/%d/", eventPK) }
func RSVPListPath(eventPK int64) string { return fmt.Sprintf("/events/%d/update-rsvp-list/", eventPK) }
func CreateTaskPath(eventPK int64) string { return fmt.Sprintf("/events/%d/tasks/create/", eventPK) }
func EditTaskPath(taskID int64) string { return fmt.Sprintf("/tasks/%d/edit/", taskID) }
func DeleteTaskPath(taskID int64) string { return fmt.Sprintf("/tasks/%d/delete/", taskID) }
func ToggleTaskPath(taskID int64) string { return fmt.Sprintf("/tasks/%d/toggle/", taskID) }
func TaskListPath(eventPK int64) string { return fmt.Sprintf("/events/%d/tasks/reload/", eventPK) }

type htmlEnvelope struct {
	HTML string `json:"html"`
}

type successEnvelope struct {
	Success bool `json:"success"`
}

// Login posts the server's login form. On success the session and CSRF
// cookies end up in the jar.
func (c *Client) Login(ctx context.Context, username, password string) error {
	const op = "login"
	resp, err := c.do(ctx, request{op: op, method: http.MethodGet, path: LoginPath})
	if err != nil {
		return err
	}
	page, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBody))
	resp.Body.Close()
	if err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= 400 {
		return statusError(op, resp.StatusCode, "")
	}
	formToken := fragment.CSRFToken(string(page))
	c.RememberFormToken(formToken)
	if formToken == "" {
		formToken = c.CSRFToken()
	}

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	form.Set(fragment.CSRFFieldName, formToken)
	resp, err = c.do(ctx, request{
		op:          op,
		method:      http.MethodPost,
		path:        LoginPath,
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
		mutating:    true,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case isRedirect(resp.StatusCode) && !isLoginRedirect(resp.Header.Get("Location")):
		return nil
	case resp.StatusCode == http.StatusOK, isRedirect(resp.StatusCode):
		return &Error{Op: op, Status: resp.StatusCode, Err: ErrInvalidCredentials}
	default:
		return statusError(op, resp.StatusCode, "")
	}
}

// Chats fetches the chat collection of an event, each with its current messages.
func (c *Client) Chats(ctx context.Context, eventPK int64) ([]chat.Chat, error) {
	var chats []chat.Chat
	err := c.doJSON(ctx, request{op: "list chats", method: http.MethodGet, path: ChatsPath(eventPK)}, &chats)
	return chats, err
}

// Messages fetches the current warning and message list of one chat.
func (c *Client) Messages(ctx context.Context, chatID int64) (chat.Snapshot, error) {
	var snapshot chat.Snapshot
	err := c.doJSON(ctx, request{op: "fetch messages", method: http.MethodGet, path: MessagesPath(chatID)}, &snapshot)
	return snapshot, err
}

// SendMessage posts {message} to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload := map[string]string{"message": text}
	return c.postJSON(ctx, "send message", AddMessagePath(chatID), payload, false, nil)
}

// SearchUsers runs the user search endpoint.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]rsvp.User, error) {
	var users []rsvp.User
	err := c.doJSON(ctx, request{
		op:     "search users",
		method: http.MethodGet,
		path:   SearchUsersPath,
		query:  url.Values{"q": {query}},
	}, &users)
	return users, err
}

// Invite creates MAYBE RSVPs for userIDs on an event.
func (c *Client) Invite(ctx context.Context, eventPK int64, userIDs []int64) (rsvp.InviteResult, error) {
	var result rsvp.InviteResult
	payload := map[string][]int64{"user_ids": userIDs}
	err := c.postJSON(ctx, "invite users", EventPath(eventPK), payload, true, &result)
	return result, err
}

// RSVPList fetches the rendered RSVP list partial of an event.
func (c *Client) RSVPList(ctx context.Context, eventPK int64) (string, error) {
	return c.fetchHTML(ctx, "reload rsvps", RSVPListPath(eventPK))
}

// TaskForm fetches a create or edit form partial.
func (c *Client) TaskForm(ctx context.Context, path string) (string, error) {
	return c.fetchHTML(ctx, "load task form", path)
}

// TaskList fetches the rendered task list partial of an event.
func (c *Client) TaskList(ctx context.Context, eventPK int64) (string, error) {
	return c.fetchHTML(ctx, "reload tasks", TaskListPath(eventPK))
}

// SubmitTaskForm posts values as multipart/form-data to path.
func (c *Client) SubmitTaskForm(ctx context.Context, path string, values url.Values) (tasks.SubmitResult, error) {
	const op = "submit task"
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if values.Get(fragment.CSRFFieldName) == "" {
		if token := c.CSRFToken(); token != "" {
			values = cloneValues(values)
			values.Set(fragment.CSRFFieldName, token)
		}
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		for _, value := range values[key] {
			if err := writer.WriteField(key, value); err != nil {
				return tasks.SubmitResult{}, &Error{Op: op, Err: err}
			}
		}
	}
	if err := writer.Close(); err != nil {
		return tasks.SubmitResult{}, &Error{Op: op, Err: err}
	}

	var result tasks.SubmitResult
	err := c.doJSON(ctx, request{
		op:          op,
		method:      http.MethodPost,
		path:        path,
		body:        &body,
		contentType: writer.FormDataContentType(),
		mutating:    true,
		xhr:         true,
	}, &result)
	if err == nil {
		c.RememberFormToken(fragment.CSRFToken(result.HTML))
	}
	return result, err
}

// DeleteTask posts to a task's delete URL. A redirect back to the event page
// counts as success, as does {"success": true}.
func (c *Client) DeleteTask(ctx context.Context, path string) (bool, error) {
	const op = "delete task"
	resp, err := c.do(ctx, request{op: op, method: http.MethodPost, path: path, mutating: true, xhr: true})
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if err := checkResponse(op, resp); err != nil {
		return false, err
	}
	if isRedirect(resp.StatusCode) {
		return true, nil
	}
	var result successEnvelope
	if err := decodeBody(resp.Body, &result); err != nil {
		return false, &Error{Op: op, Status: resp.StatusCode, Err: err}
	}
	return result.Success, nil
}

// ToggleTask flips a task's completion flag. The server answers with a redirect.
func (c *Client) ToggleTask(ctx context.Context, path string) error {
	return c.doJSON(ctx, request{op: "toggle task", method: http.MethodGet, path: path, xhr: true}, nil)
}

func (c *Client) fetchHTML(ctx context.Context, op, path string) (string, error) {
	var env htmlEnvelope
	if err := c.doJSON(ctx, request{op: op, method: http.MethodGet, path: path, xhr: true}, &env); err != nil {
		return "", err
	}
	c.RememberFormToken(fragment.CSRFToken(env.HTML))
	return env.HTML, nil
}

func cloneValues(values url.Values) url.Values {
	out := make(url.Values, len(values)+1)
	for key, vals := range values {
		out[key] = append([]string(nil), vals...)
	}
	return out
}
