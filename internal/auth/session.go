package auth

import (
	"net/http"

	"github.com/edupresencia/fichai/internal/conf"
	"github.com/edupresencia/fichai/internal/errors"
	"github.com/gorilla/sessions"
)

// Session value keys written by the login flow of the main application.
const (
	SessionKeyUserID        = "user_id"
	SessionKeyRole          = "role"
	SessionKeyInstitutionID = "institution_id"
)

// ErrNoSession is returned when a request carries no authenticated session.
var ErrNoSession = errors.NewStd("no authenticated session")

// SessionStore reads the signed session cookie shared with the login service.
type SessionStore struct {
	store sessions.Store
	name  string
}

// NewSessionStore creates a cookie-backed store from the auth settings.
func NewSessionStore(settings conf.AuthSettings) *SessionStore {
	store := sessions.NewCookieStore([]byte(settings.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionStore{store: store, name: settings.SessionName}
}

// Load returns the user of the request's session, or ErrNoSession.
func (s *SessionStore) Load(r *http.Request) (*User, error) {
	session, err := s.store.Get(r, s.name)
	if err != nil || session.IsNew {
		return nil, ErrNoSession
	}
	id, _ := session.Values[SessionKeyUserID].(string)
	role, _ := session.Values[SessionKeyRole].(string)
	if id == "" || !ValidRole(role) {
		return nil, ErrNoSession
	}
	institutionID, _ := session.Values[SessionKeyInstitutionID].(string)
	return &User{ID: id, Role: Role(role), InstitutionID: institutionID}, nil
}

// Save writes u into the session cookie of the response.
func (s *SessionStore) Save(w http.ResponseWriter, r *http.Request, u *User) error {
	session, err := s.store.Get(r, s.name)
	if err != nil && session == nil {
		return err
	}
	session.Values[SessionKeyUserID] = u.ID
	session.Values[SessionKeyRole] = string(u.Role)
	session.Values[SessionKeyInstitutionID] = u.InstitutionID
	return session.Save(r, w)
}
