package http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"expensia/internal/api"
	"expensia/internal/forms"
	"expensia/internal/guard"
	"expensia/internal/log"
	"expensia/internal/session"
	"expensia/internal/verify"
)

const (
	msgSignupSuccess       = "Account created! Please check your email for verification code."
	msgSignupFailed        = "Signup failed"
	msgEmailVerified       = "Email verified successfully!"
	msgInvalidCode         = "Invalid verification code"
	msgCodeExpired         = "Verification code expired. Please request a new one."
	msgCodeResent          = "Verification code resent to your email"
	msgResendFailed        = "Failed to resend verification code"
	msgMaxAttempts         = "Maximum resend attempts exceeded. Please try again later."
	msgResetCodeSent       = "Verification code sent to your email"
	msgResetCodeSendFailed = "Failed to send verification code"
	msgCodeVerified        = "Code verified successfully"
	msgPasswordReset       = "Password reset successfully!"
	msgPasswordResetFailed = "Failed to reset password"
	msgOAuthFailed         = "Google login failed"

	// redirectDelayMs leaves time to read the notification before leaving.
	redirectDelayMs = 2000
)

type loginView struct {
	Email string
}

type codeView struct {
	Email  string
	Status verify.Status
	// Action is where the code form posts, Resend where a new code is requested.
	Action string
	Resend string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if user := guard.User(r.Context()); user != nil {
		http.Redirect(w, r, user.DashboardPath(), http.StatusSeeOther)
		return
	}
	p := s.newPage(r, "Login", "login")
	p.Data = loginView{Email: strings.TrimSpace(r.URL.Query().Get("email"))}
	s.render(w, r, "login", p)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	form, err := forms.ParseLogin(r.PostForm)
	if err != nil {
		s.mutationFailed(w, r, log.OpLogin, err, session.MsgLoginFailed)
		return
	}

	res, err := s.sessions.Login(r.Context(), form.Email, form.Password)
	if err != nil {
		msg := api.MessageOr(err, session.MsgLoginFailed)
		status := http.StatusBadGateway
		if code := api.StatusCode(err); code >= 400 && code < 500 {
			status = http.StatusUnprocessableEntity
		}
		log.FromContext(r.Context()).WarnContext(r.Context(), "Login failed",
			log.FieldUserEmail, form.Email,
			log.FieldError, err)
		ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
		return
	}

	s.cookie.Set(w, res.SessionID, res.TTL)
	setFlash(w, NotificationSuccess, res.Message)
	guard.Redirect(w, r, res.Redirect)
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	if user := guard.User(r.Context()); user != nil {
		http.Redirect(w, r, user.DashboardPath(), http.StatusSeeOther)
		return
	}
	s.render(w, r, "signup", s.newPage(r, "Sign up", "signup"))
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	form, err := forms.ParseSignup(r.PostForm)
	if err != nil {
		s.mutationFailed(w, r, log.OpCreate, err, msgSignupFailed)
		return
	}

	err = s.backend.SignUp(r.Context(), api.SignUpRequest{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
	})
	if err != nil {
		s.mutationFailed(w, r, log.OpCreate, err, msgSignupFailed)
		return
	}

	s.verifier.Restart(form.Email)
	setFlash(w, NotificationSuccess, msgSignupSuccess)
	guard.Redirect(w, r, "/auth/verify-email?email="+url.QueryEscape(form.Email))
}

// handleOAuthCallback completes the Google sign in. The backend redirects
// here with either token and email, or error.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentAuth)

	if oauthErr := q.Get("error"); oauthErr != "" {
		logger.WarnContext(r.Context(), "OAuth provider returned an error", log.FieldError, oauthErr)
		setFlash(w, NotificationError, msgOAuthFailed)
		http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
		return
	}

	res, err := s.sessions.OAuthLogin(r.Context(), q.Get("token"), q.Get("email"))
	if err != nil {
		logger.WarnContext(r.Context(), "OAuth login failed", log.FieldError, err)
		setFlash(w, NotificationError, session.MsgOAuthUserFailed)
		http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
		return
	}

	s.cookie.Set(w, res.SessionID, res.TTL)
	setFlash(w, NotificationSuccess, res.Message)
	http.Redirect(w, r, res.Redirect, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if errResp := RequireMethod(r, http.MethodGet, http.MethodPost); errResp != nil {
		errResp.Write(w)
		return
	}
	redirect, msg := s.sessions.Logout(r.Context(), s.cookie.Read(r))
	s.cookie.Clear(w)
	setFlash(w, NotificationSuccess, msg)
	guard.Redirect(w, r, redirect)
}

// codeStatus returns the flow of email, starting one when the page is
// opened without a prior request (for example after a restart).
func (s *Server) codeStatus(email string) verify.Status {
	if st, ok := s.verifier.Status(email); ok {
		return st
	}
	return s.verifier.Start(email)
}

func (s *Server) handleVerifyEmailPage(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		http.Redirect(w, r, "/auth/signup", http.StatusSeeOther)
		return
	}
	p := s.newPage(r, "Verify your email", "verify")
	p.Data = codeView{
		Email:  email,
		Status: s.codeStatus(email),
		Action: "/auth/verify-email",
		Resend: "/auth/verify-email/resend",
	}
	s.render(w, r, "verify_email", p)
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	s.verifyCode(w, r, s.backend.VerifyEmail, func(email string) {
		NewHTMXResponse().
			TriggerSuccessNotification(msgEmailVerified).
			TriggerRedirectAfter(guard.LoginPath+"?email="+url.QueryEscape(email), redirectDelayMs).
			Write(w)
	})
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	s.resendCode(w, r, s.backend.ResendVerificationCode, codeView{
		Action: "/auth/verify-email",
		Resend: "/auth/verify-email/resend",
	})
}

// verifyCode checks a submitted one-time code against the backend. An
// expired countdown is refused without calling it.
func (s *Server) verifyCode(w http.ResponseWriter, r *http.Request, check func(context.Context, string) error, onSuccess func(email string)) {
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	form, err := forms.ParseCode(r.PostForm)
	if err != nil {
		s.mutationFailed(w, r, log.OpValidate, err, msgInvalidCode)
		return
	}
	if form.Email != "" {
		if st, ok := s.verifier.Status(form.Email); ok && st.Expired() {
			UnprocessableEntityError(msgCodeExpired).TriggerErrorNotification(msgCodeExpired).Write(w)
			return
		}
	}

	if err := check(r.Context(), form.Code); err != nil {
		s.mutationFailed(w, r, log.OpValidate, err, msgInvalidCode)
		return
	}
	if form.Email != "" {
		s.verifier.Done(form.Email)
	}
	onSuccess(form.Email)
}

// resendCode asks the backend for a new code. Throttled refusals update the
// countdown fragment so the resend button reflects the cooldown.
func (s *Server) resendCode(w http.ResponseWriter, r *http.Request, send func(context.Context, string) error, view codeView) {
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	form, err := forms.ParseEmail(r.PostForm)
	if err != nil {
		s.mutationFailed(w, r, log.OpCreate, err, msgResendFailed)
		return
	}
	view.Email = form.Email

	if st := s.codeStatus(form.Email); !st.CanResend() {
		msg := msgMaxAttempts
		if !st.Exhausted {
			msg = fmt.Sprintf("Please wait %d seconds before requesting a new code", st.CooldownSeconds())
		}
		view.Status = st
		s.codeFragment(w, r, view, NotificationError, msg)
		return
	}

	if err := send(r.Context(), form.Email); err != nil {
		th := api.ClassifyThrottle(err)
		if !th.Throttled() {
			s.mutationFailed(w, r, log.OpCreate, err, msgResendFailed)
			return
		}
		view.Status = s.verifier.ResendRefused(form.Email, th)
		msg := api.MessageOr(err, msgResendFailed)
		if th.MaxAttempts {
			msg = api.MessageOr(err, msgMaxAttempts)
		}
		log.FromContext(r.Context()).InfoContext(r.Context(), "Code resend throttled",
			log.FieldUserEmail, form.Email,
			"retry_after", view.Status.CooldownSeconds(),
			"exhausted", view.Status.Exhausted)
		s.codeFragment(w, r, view, NotificationError, msg)
		return
	}

	view.Status = s.verifier.ResendSucceeded(form.Email)
	s.codeFragment(w, r, view, NotificationSuccess, msgCodeResent)
}

func (s *Server) codeFragment(w http.ResponseWriter, r *http.Request, view codeView, t NotificationType, msg string) {
	b := NewHTMXResponse()
	if t == NotificationError {
		b.TriggerErrorNotification(msg)
	} else {
		b.TriggerSuccessNotification(msg)
	}
	b.applyTriggers(w)
	s.execute(w, r, http.StatusOK, "code_status", view)
}

func (s *Server) handleForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "forgot_password", s.newPage(r, "Forgot password", "forgot"))
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	form, err := forms.ParseEmail(r.PostForm)
	if err != nil {
		s.mutationFailed(w, r, log.OpValidate, err, msgResetCodeSendFailed)
		return
	}
	if err := s.backend.VerifyEmailForPasswordReset(r.Context(), form.Email); err != nil {
		s.mutationFailed(w, r, log.OpValidate, err, msgResetCodeSendFailed)
		return
	}

	s.verifier.Restart(form.Email)
	setFlash(w, NotificationSuccess, msgResetCodeSent)
	guard.Redirect(w, r, "/auth/reset-password?email="+url.QueryEscape(form.Email))
}

func (s *Server) handleResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		http.Redirect(w, r, "/auth/forgot-password", http.StatusSeeOther)
		return
	}
	p := s.newPage(r, "Reset password", "reset")
	p.Data = codeView{
		Email:  email,
		Status: s.codeStatus(email),
		Action: "/auth/reset-password/verify",
		Resend: "/auth/reset-password/resend",
	}
	s.render(w, r, "reset_password", p)
}

func (s *Server) handleVerifyResetCode(w http.ResponseWriter, r *http.Request) {
	s.verifyCode(w, r, s.backend.VerifyPasswordResetCode, func(email string) {
		NewHTMXResponse().TriggerSuccessNotification(msgCodeVerified).applyTriggers(w)
		s.execute(w, r, http.StatusOK, "reset_password_form", codeView{Email: email})
	})
}

func (s *Server) handleResendResetCode(w http.ResponseWriter, r *http.Request) {
	s.resendCode(w, r, s.backend.VerifyEmailForPasswordReset, codeView{
		Action: "/auth/reset-password/verify",
		Resend: "/auth/reset-password/resend",
	})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	form, err := forms.ParseResetPassword(r.PostForm)
	if err != nil {
		s.mutationFailed(w, r, log.OpUpdate, err, msgPasswordResetFailed)
		return
	}
	if err := s.backend.ResetPassword(r.Context(), form.Email, form.NewPassword); err != nil {
		s.mutationFailed(w, r, log.OpUpdate, err, msgPasswordResetFailed)
		return
	}

	NewHTMXResponse().
		TriggerSuccessNotification(msgPasswordReset).
		TriggerRedirectAfter(guard.LoginPath, redirectDelayMs).
		Write(w)
}
