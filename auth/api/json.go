package api

import (
	"encoding/json"
	"io"
	"net"
	"net/http"

	"github.com/andrebq/healthtrack/auth"
)

const (
	maxBody = 64 << 10
)

type (
	credentialsBody struct {
		Username     string `json:"username"`
		Password     string `json:"password"`
		CaptchaToken string `json:"captchaToken"`
	}

	passwordBody struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}

	accountBody struct {
		Password string `json:"password"`
	}

	tokenResponse struct {
		Success  bool   `json:"success"`
		Token    string `json:"token"`
		Username string `json:"username"`
	}

	identityResponse struct {
		Success  bool   `json:"success"`
		Username string `json:"username"`
	}

	okResponse struct {
		Success bool `json:"success"`
	}
)

func decodeBody(r *http.Request, out interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(out)
	if err != nil {
		return auth.ValidationError{Reason: "Invalid request body"}
	}
	return nil
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *SecurityRealm) registerJSON(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.gateway.RegisterToken(r.Context(), body.Username, body.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Success: true, Token: id.Token, Username: id.Username})
}

func (s *SecurityRealm) loginJSON(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.gateway.LoginToken(r.Context(), auth.Credentials{
		Username:     body.Username,
		Password:     body.Password,
		CaptchaToken: body.CaptchaToken,
		RemoteIP:     remoteIP(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Success: true, Token: id.Token, Username: id.Username})
}

func (s *SecurityRealm) verifyJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, identityResponse{Success: true, Username: Username(r.Context())})
}

func (s *SecurityRealm) changePasswordJSON(w http.ResponseWriter, r *http.Request) {
	var body passwordBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	err := s.gateway.ChangePassword(r.Context(), Username(r.Context()), body.CurrentPassword, body.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

func (s *SecurityRealm) deleteAccountJSON(w http.ResponseWriter, r *http.Request) {
	var body accountBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	err := s.gateway.DeleteAccount(r.Context(), Username(r.Context()), body.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}
