package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// defaultFolders mirrors the upstream mailbox's default scan scope: the
// primary inbox plus whatever the provider routes suspected junk into.
var defaultFolders = []string{"inbox", "junkemail"}

// Client talks to a Graph-shaped mailbox REST API on behalf of one mailbox.
type Client struct {
	http    *http.Client
	tokens  TokenSource
	mailbox string
	log     *slog.Logger
	baseURL string
}

// NewClient builds a Client. httpClient may be nil to use a sensible
// default with a bounded timeout.
func NewClient(httpClient *http.Client, tokens TokenSource, mailbox string, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{http: httpClient, tokens: tokens, mailbox: mailbox, log: log, baseURL: graphBaseURL}
}

// WithBaseURL overrides the Graph API base URL, for tests that substitute
// an httptest server for the real Microsoft Graph endpoint.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

// ReadOpts configures one paginated read over the mailbox.
type ReadOpts struct {
	N                 int
	BatchSize         int
	UnseenOnly        bool
	MostRecentFirst   bool
	Folders           []string
	SetToRead         bool
	RemoveUndelivered bool
}

// DefaultReadOpts mirrors the adapter's default scan: unread mail in the
// inbox and junk folder, newest first, marked read and bounce-purged as it
// is yielded.
func DefaultReadOpts() ReadOpts {
	return ReadOpts{
		N:                 9999,
		BatchSize:         50,
		UnseenOnly:        true,
		MostRecentFirst:   true,
		Folders:           defaultFolders,
		SetToRead:         true,
		RemoveUndelivered: true,
	}
}

// Reader is a pull-style iterator over one Graph mailbox query. It holds
// the nextLink cursor internally and takes no stop signal of its own:
// callers check their stop signal between Next calls, and every page that
// Next fetches is returned whole by that call.
type Reader struct {
	client   *Client
	opts     ReadOpts
	nextLink string
	started  bool
	done     bool
	yielded  int
}

// NewReader starts a new paginated read with the given options.
func (c *Client) NewReader(opts ReadOpts) *Reader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if len(opts.Folders) == 0 {
		opts.Folders = defaultFolders
	}
	return &Reader{client: c, opts: opts}
}

// Next fetches and returns the next batch (size <= opts.BatchSize) of
// normalized messages, after filtering out and scheduling deletion for any
// bounce-lexicon matches. ok is false once the remote has no further
// continuation or the requested total has been reached; err is non-nil only
// on a request failure, in which case the caller should retry or abort —
// the cursor is left unchanged so the same page can be re-fetched.
func (r *Reader) Next(ctx context.Context) (batch []Message, ok bool, err error) {
	if r.done {
		return nil, false, nil
	}

	remaining := r.opts.N - r.yielded
	if remaining <= 0 {
		r.done = true
		return nil, false, nil
	}
	top := r.opts.BatchSize
	if remaining < top {
		top = remaining
	}

	var page *listMessagesResponse
	if !r.started {
		page, err = r.client.listMessages(ctx, r.opts, top)
	} else {
		if r.nextLink == "" {
			r.done = true
			return nil, false, nil
		}
		page, err = r.client.listMessagesByURL(ctx, r.nextLink)
	}
	if err != nil {
		return nil, false, err
	}
	r.started = true

	r.nextLink = page.NextLink
	if r.nextLink == "" {
		r.done = true
	}

	messages, toDelete, toMarkRead := r.client.splitBounces(page.Value, r.opts)
	r.yielded += len(page.Value)

	if len(toDelete) > 0 {
		if delErr := r.client.DeleteMessages(ctx, toDelete); delErr != nil {
			r.client.log.Warn("mail: failed to delete bounce messages", "error", delErr, "count", len(toDelete))
		}
	}
	if len(toMarkRead) > 0 {
		if markErr := r.client.SetRead(ctx, toMarkRead, true); markErr != nil {
			r.client.log.Warn("mail: failed to mark messages read", "error", markErr, "count", len(toMarkRead))
		}
	}

	return messages, true, nil
}

func (c *Client) splitBounces(raw []graphMessage, opts ReadOpts) (kept []Message, toDelete, toMarkRead []string) {
	for _, m := range raw {
		if opts.RemoveUndelivered && IsBounce(m.Subject) {
			toDelete = append(toDelete, m.ID)
			continue
		}
		kept = append(kept, m.normalize())
		if opts.SetToRead {
			toMarkRead = append(toMarkRead, m.ID)
		}
	}
	if len(toDelete) > 0 {
		c.log.Info("mail: excluded undeliverable messages", "count", len(toDelete))
	}
	return kept, toDelete, toMarkRead
}

type graphMessage struct {
	ID               string `json:"id"`
	Subject          string `json:"subject"`
	IsRead           bool   `json:"isRead"`
	ReceivedDateTime string `json:"receivedDateTime"`
	From             struct {
		EmailAddress struct {
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"from"`
	ToRecipients []struct {
		EmailAddress struct {
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"toRecipients"`
	UniqueBody struct {
		Content string `json:"content"`
	} `json:"uniqueBody"`
}

// maxRecipients caps how many recipient addresses are kept per message
// (spec.md §3: "recipients truncated to first 50").
const maxRecipients = 50

func (m graphMessage) normalize() Message {
	recipients := make([]string, 0, len(m.ToRecipients))
	for _, r := range m.ToRecipients {
		if r.EmailAddress.Address == "" {
			continue
		}
		if len(recipients) >= maxRecipients {
			break
		}
		recipients = append(recipients, r.EmailAddress.Address)
	}
	received, _ := time.Parse(time.RFC3339, m.ReceivedDateTime)
	return Message{
		ID:           m.ID,
		Subject:      m.Subject,
		Sender:       m.From.EmailAddress.Address,
		Recipients:   strings.Join(recipients, ","),
		DateReceived: received,
		IsRead:       m.IsRead,
		Body:         m.UniqueBody.Content,
	}
}

type listMessagesResponse struct {
	Value    []graphMessage `json:"value"`
	NextLink string         `json:"@odata.nextLink"`
}

func (c *Client) listMessages(ctx context.Context, opts ReadOpts, top int) (*listMessagesResponse, error) {
	// Graph requires every $orderby property to also appear in $filter, in
	// the same prefix order, so receivedDateTime leads the filter even when
	// no folder/read-state constraint narrows it further.
	clauses := []string{"receivedDateTime ge 1999-01-01T00:00:00Z"}
	folders := make([]string, 0, len(opts.Folders))
	for _, f := range opts.Folders {
		folders = append(folders, fmt.Sprintf("parentFolderId eq '%s'", f))
	}
	if len(folders) > 0 {
		clauses = append(clauses, "("+strings.Join(folders, " or ")+")")
	}
	if opts.UnseenOnly {
		clauses = append(clauses, "isRead eq false")
	}
	filter := strings.Join(clauses, " and ")

	order := "receivedDateTime desc"
	if !opts.MostRecentFirst {
		order = "receivedDateTime asc"
	}

	q := url.Values{}
	q.Set("$top", strconv.Itoa(top))
	q.Set("$select", "id,subject,sender,from,toRecipients,receivedDateTime,uniqueBody,isRead")
	q.Set("$filter", filter)
	q.Set("$orderby", order)

	endpoint := fmt.Sprintf("%s/users/%s/messages?%s", c.baseURL, url.PathEscape(c.mailbox), q.Encode())
	return c.getMessages(ctx, endpoint)
}

func (c *Client) listMessagesByURL(ctx context.Context, link string) (*listMessagesResponse, error) {
	return c.getMessages(ctx, link)
}

func (c *Client) getMessages(ctx context.Context, endpoint string) (*listMessagesResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", `outlook.body-content-type="text"`)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mail: list messages: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mail: list messages: unexpected status %d", resp.StatusCode)
	}

	var out listMessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("mail: decode messages: %w", err)
	}
	return &out, nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("mail: authorize: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return nil
}

// batchRequest is one sub-operation of a Graph $batch call.
type batchRequest struct {
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    any               `json:"body,omitempty"`
}

// postBatch submits reqs (already chunked to <= maxBatchOps) as a single
// $batch call. Submission is fire-and-forget: the caller does not retry
// inside the adapter, matching the send operation's policy.
func (c *Client) postBatch(ctx context.Context, reqs []batchRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	payload, err := json.Marshal(map[string]any{"requests": reqs})
	if err != nil {
		return fmt.Errorf("mail: marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/$batch", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mail: post batch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mail: post batch: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// DeleteMessages deletes the given message ids, split into sub-batches of
// at most the remote's batch-operation limit.
func (c *Client) DeleteMessages(ctx context.Context, ids []string) error {
	for _, chunk := range chunkIDs(ids, maxBatchOps) {
		reqs := make([]batchRequest, len(chunk))
		for i, id := range chunk {
			reqs[i] = batchRequest{
				ID:     strconv.Itoa(i + 1),
				Method: http.MethodDelete,
				URL:    "/me/messages/" + id,
			}
		}
		if err := c.postBatch(ctx, reqs); err != nil {
			return err
		}
	}
	return nil
}

// SetRead marks the given message ids read or unread, split into
// sub-batches of at most the remote's batch-operation limit.
func (c *Client) SetRead(ctx context.Context, ids []string, read bool) error {
	for _, chunk := range chunkIDs(ids, maxBatchOps) {
		reqs := make([]batchRequest, len(chunk))
		for i, id := range chunk {
			reqs[i] = batchRequest{
				ID:      strconv.Itoa(i + 1),
				Method:  http.MethodPatch,
				URL:     "/me/messages/" + id,
				Headers: map[string]string{"Content-Type": "application/json"},
				Body:    map[string]bool{"isRead": read},
			}
		}
		if err := c.postBatch(ctx, reqs); err != nil {
			return err
		}
	}
	return nil
}

// Send submits a new outbound message. Failure is the caller's to log and
// retry; the adapter itself never retries a send.
func (c *Client) Send(ctx context.Context, to, subject, body string) error {
	payload := map[string]any{
		"message": map[string]any{
			"subject": subject,
			"body":    map[string]string{"contentType": "Text", "content": body},
			"toRecipients": []map[string]any{
				{"emailAddress": map[string]string{"address": to}},
			},
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mail: marshal send: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/me/sendMail", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mail: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mail: send: unexpected status %d", resp.StatusCode)
	}
	return nil
}
