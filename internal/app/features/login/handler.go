// Package login serves the public account endpoints: login and register.
// Both answer with a bearer token and the account.
package login

import (
	"context"
	"errors"
	"net/http"

	userstore "github.com/dalemusser/inventoryhub/internal/app/store/users"
	"github.com/dalemusser/inventoryhub/internal/app/system/auditlog"
	"github.com/dalemusser/inventoryhub/internal/app/system/auth"
	"github.com/dalemusser/inventoryhub/internal/app/system/authutil"
	"github.com/dalemusser/inventoryhub/internal/app/system/httpjson"
	"github.com/dalemusser/inventoryhub/internal/app/system/inputval"
	"github.com/dalemusser/inventoryhub/internal/app/system/timeouts"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const badCredentials = "Invalid mail or password"

type Handler struct {
	Users    *userstore.Store
	Tokens   *auth.TokenManager
	AuditLog *auditlog.Logger
	Log      *zap.Logger
}

func NewHandler(db *mongo.Database, tokens *auth.TokenManager, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:    userstore.New(db),
		Tokens:   tokens,
		AuditLog: audit,
		Log:      logger,
	}
}

type loginRequest struct {
	Mail     string `json:"mail" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Mail     string `json:"mail" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// sessionResponse mirrors apiclient.Session.
type sessionResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// HandleLogin handles POST /public/auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := inputval.DecodeRequest[loginRequest](w, r)
	if !ok {
		return
	}

	mail, err := authutil.NormalizeMail(req.Mail)
	if err != nil {
		h.AuditLog.LoginFailed(r, req.Mail, "malformed mail")
		httpjson.Error(w, http.StatusUnauthorized, badCredentials)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByMail(ctx, mail)
	if errors.Is(err, mongo.ErrNoDocuments) {
		h.AuditLog.LoginFailed(r, mail, "user not found")
		httpjson.Error(w, http.StatusUnauthorized, badCredentials)
		return
	}
	if err != nil {
		h.Log.Error("load user for login", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "")
		return
	}
	if !authutil.CheckPassword(req.Password, u.PasswordHash) {
		h.AuditLog.LoginFailed(r, mail, "wrong password")
		httpjson.Error(w, http.StatusUnauthorized, badCredentials)
		return
	}

	h.AuditLog.LoginSuccess(r, u.ID, mail)
	h.respond(w, http.StatusOK, *u)
}

// HandleRegister handles POST /public/auth/register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := inputval.DecodeRequest[registerRequest](w, r)
	if !ok {
		return
	}

	reg, err := authutil.ResolveRegistration(req.Name, req.Mail, req.Password)
	if err != nil {
		httpjson.Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.Create(ctx, models.User{Name: reg.Name, Mail: reg.Mail, PasswordHash: reg.PasswordHash})
	if errors.Is(err, userstore.ErrDuplicateMail) {
		httpjson.Error(w, http.StatusConflict, "An account with this mail already exists")
		return
	}
	if err != nil {
		h.Log.Error("create user", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "")
		return
	}

	h.AuditLog.Registered(r, u.ID, u.Mail)
	h.respond(w, http.StatusCreated, u)
}

func (h *Handler) respond(w http.ResponseWriter, status int, u models.User) {
	tok, err := h.Tokens.Issue(u)
	if err != nil {
		h.Log.Error("issue token", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "")
		return
	}
	httpjson.Write(w, status, sessionResponse{Token: tok, User: u})
}
