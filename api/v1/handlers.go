package v1

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/tinoosan/ghusers/internal/data"
	"github.com/tinoosan/ghusers/internal/fp"
	"github.com/tinoosan/ghusers/internal/neterr"
	"github.com/tinoosan/ghusers/internal/netstate"
	"github.com/tinoosan/ghusers/internal/reqid"
	"github.com/tinoosan/ghusers/internal/service"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type Users struct {
	l   *slog.Logger
	svc service.Users
}

type connectivityBody struct {
	State string `json:"state"`
}

type noteBody struct {
	Note string `json:"note"`
}

type rwLogger struct {
	http.ResponseWriter
	status int
	bytes  int
	err    error
}

func (w *rwLogger) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *rwLogger) SetErr(err error) {
	w.err = err
}

func (w *rwLogger) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Hijack lets the websocket endpoint take over the connection.
func (w *rwLogger) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("%T does not support hijacking", w.ResponseWriter)
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

type errorSetter interface {
	SetErr(error)
}

func markErr(w http.ResponseWriter, err error) {
	if es, ok := w.(errorSetter); ok {
		es.SetErr(err)
	}
}

func NewUsers(l *slog.Logger, svc service.Users) *Users {
	if l == nil {
		l = slog.Default()
	}
	return &Users{l: l, svc: svc}
}

// ListUsers serves one page of users. The next page starts after the
// returned X-Next-Since value.
func (u *Users) ListUsers(w http.ResponseWriter, r *http.Request) {
	since, err := data.ParseSince(r.URL.Query().Get("since"))
	if err != nil {
		u.fail(w, err)
		return
	}
	list, err := u.svc.List(r.Context(), since)
	if err != nil {
		u.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Next-Since", strconv.FormatInt(list.LastID(since), 10))
	if err := list.ToJSON(w); err != nil {
		markErr(w, err)
	}
}

func (u *Users) GetUser(w http.ResponseWriter, r *http.Request) {
	p, err := u.svc.Profile(r.Context(), mux.Vars(r)["login"])
	if err != nil {
		u.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := p.ToJSON(w); err != nil {
		markErr(w, err)
	}
}

// GetAvatar serves the cached avatar, fetching it when needed. Any failure
// past id validation yields the placeholder image flagged by
// X-Avatar-Placeholder.
func (u *Users) GetAvatar(w http.ResponseWriter, r *http.Request) {
	id, err := data.ParseID(mux.Vars(r)["id"])
	if err != nil {
		markErr(w, err)
		http.Error(w, ErrBadAvatarID.Error(), http.StatusBadRequest)
		return
	}
	b, err := u.svc.Avatar(r.Context(), id)
	if err != nil {
		markErr(w, err)
		w.Header().Set(headerPlaceholder, "true")
		w.Header().Set("Cache-Control", "no-store")
		b = placeholderPNG
	} else {
		etag := fp.ETag(b)
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "private, max-age=3600")
		if fp.Matches(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.Header().Set("Content-Type", http.DetectContentType(b))
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	_, _ = w.Write(b)
}

func (u *Users) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	id, err := data.ParseID(mux.Vars(r)["id"])
	if err != nil {
		markErr(w, err)
		http.Error(w, ErrBadAvatarID.Error(), http.StatusBadRequest)
		return
	}
	if err := u.svc.PurgeAvatar(r.Context(), id); err != nil {
		u.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (u *Users) GetNote(w http.ResponseWriter, r *http.Request) {
	id, err := data.ParseID(mux.Vars(r)["id"])
	if err != nil {
		u.fail(w, err)
		return
	}
	note, err := u.svc.Note(r.Context(), id)
	if err != nil {
		u.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(noteBody{Note: note})
}

// PutNote replaces the note for a user. An empty note removes it.
func (u *Users) PutNote(w http.ResponseWriter, r *http.Request) {
	id, err := data.ParseID(mux.Vars(r)["id"])
	if err != nil {
		u.fail(w, err)
		return
	}
	var body noteBody
	if err := decodeJSONStrict(w, r, &body); err != nil {
		u.fail(w, err)
		return
	}
	u.saveNote(w, r, id, body.Note)
}

func (u *Users) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := data.ParseID(mux.Vars(r)["id"])
	if err != nil {
		u.fail(w, err)
		return
	}
	u.saveNote(w, r, id, "")
}

func (u *Users) saveNote(w http.ResponseWriter, r *http.Request, id int64, text string) {
	if err := u.svc.SetNote(r.Context(), id, text); err != nil {
		u.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (u *Users) GetConnectivity(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(connectivityBody{State: u.svc.Connectivity().String()})
}

// WatchConnectivity upgrades to a websocket and pushes the current state,
// then every change, as {"state": "..."} messages.
func (u *Users) WatchConnectivity(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		markErr(w, fmt.Errorf("%w: %w", ErrUpgrade, err))
		return
	}
	defer func() { _ = c.Close(websocket.StatusInternalError, "closing") }()

	// Client messages are ignored; reading detects the close.
	ctx := c.CloseRead(r.Context())
	updates, stop := u.svc.WatchConnectivity(8)
	defer stop()

	l := reqid.Logger(r.Context(), u.l)
	send := func(s netstate.State) bool {
		if err := wsjson.Write(ctx, c, connectivityBody{State: s.String()}); err != nil {
			l.Debug("connectivity stream ended", "err", err)
			return false
		}
		return true
	}
	if !send(u.svc.Connectivity()) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			_ = c.Close(websocket.StatusNormalClosure, "")
			return
		case s, ok := <-updates:
			if !ok || !send(s) {
				return
			}
		}
	}
}

// fail maps a service error onto a status code.
func (u *Users) fail(w http.ResponseWriter, err error) {
	markErr(w, err)
	code := statusFor(err)
	msg := http.StatusText(code)
	switch code {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnsupportedMediaType:
		msg = err.Error()
	}
	http.Error(w, msg, code)
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, data.ErrBadID), errors.Is(err, data.ErrBadLogin), errors.Is(err, data.ErrBadCursor),
		errors.Is(err, data.ErrNoteTooLong), errors.Is(err, ErrBadBody):
		return http.StatusBadRequest
	case errors.Is(err, ErrContentType):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, data.ErrNotFound), errors.Is(err, data.ErrNoAvatar):
		return http.StatusNotFound
	}
	switch neterr.KindOf(err) {
	case neterr.Timeout:
		return http.StatusGatewayTimeout
	case neterr.Cancelled:
		return http.StatusServiceUnavailable
	case neterr.Unspecified, neterr.MissingData:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
