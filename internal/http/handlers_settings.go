package http

import (
	"encoding/base64"
	"html/template"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"expensia/internal/core"
	"expensia/internal/forms"
	"expensia/internal/log"
	"expensia/internal/session"
)

const (
	msgPreferencesSaved       = "Preferences updated successfully"
	msgPreferencesFailed      = "Failed to update preferences"
	msgPasswordChanged        = "Password changed successfully"
	msgPasswordChangeFailed   = "Failed to change password"
	msgImageUploaded          = "Profile image uploaded successfully"
	msgImageUploadFailed      = "Failed to upload profile image"
	msgImageDeleted           = "Profile image deleted successfully"
	msgImageDeleteFailed      = "Failed to delete profile image"
	msgProfileImageLoadFailed = "Failed to load profile image"
)

type settingsView struct {
	// Base is the path prefix the forms post to: /settings or /admin/settings.
	Base        string
	Preferences bool
	Timezone    string
	Currency    string
	Timezones   []string
	Currencies  []string
	// Image is a data URL rebuilt by imageDataURL from sniffed image
	// bytes, so it may bypass URL sanitizing.
	Image       template.URL
}

// imageDataURL turns the backend's base64 image into something an img tag
// can show. The URL is always rebuilt from the decoded bytes: a data URL
// sent by the backend only contributes its payload, and anything that does
// not sniff as an image renders no picture.
func imageDataURL(encoded string) string {
	encoded = strings.TrimSpace(encoded)
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		_, payload, found := strings.Cut(rest, ";base64,")
		if !found {
			return ""
		}
		encoded = payload
	}
	if encoded == "" {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) == 0 {
		return ""
	}
	mt := mimetype.Detect(raw)
	if !strings.HasPrefix(mt.String(), "image/") {
		return ""
	}
	return "data:" + mt.String() + ";base64," + encoded
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	s.renderSettings(w, r, "/settings", "settings", true)
}

func (s *Server) handleAdminSettings(w http.ResponseWriter, r *http.Request) {
	s.renderSettings(w, r, "/admin/settings", "admin-settings", false)
}

func (s *Server) renderSettings(w http.ResponseWriter, r *http.Request, base, nav string, withPreferences bool) {
	ctx := r.Context()
	user := currentUser(r)
	p := s.newPage(r, "Settings", nav)
	view := &settingsView{
		Base:        base,
		Preferences: withPreferences,
		Timezone:    user.Timezone,
		Currency:    user.CurrencyOrDefault(),
		Timezones:   core.SupportedTimezones,
		Currencies:  core.SupportedCurrencies,
	}
	if view.Timezone == "" {
		view.Timezone = core.DefaultTimezone
	}

	img, err := s.backend.GetProfileImage(ctx, user.Email)
	if err != nil {
		s.listFailed(ctx, p, err, msgProfileImageLoadFailed)
	}
	view.Image = template.URL(imageDataURL(img))

	if s.sessionEnded(w, r) {
		return
	}
	p.Data = view
	s.render(w, r, "settings", p)
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	form, err := forms.ParsePreferences(r.PostForm)
	if err != nil {
		s.mutationFailed(w, r, log.OpUpdate, err, msgPreferencesFailed)
		return
	}
	if err := s.backend.UpdatePreferences(r.Context(), form.ToCore(currentUser(r).Email)); err != nil {
		s.mutationFailed(w, r, log.OpUpdate, err, msgPreferencesFailed)
		return
	}

	// The session copy of the preferences drives currency formatting.
	if st := session.FromContext(r.Context()); st != nil {
		if s.sessions.RefreshPreferences(r.Context(), st.ID) == nil {
			if _, err := s.sessions.UpdateUser(r.Context(), st.ID, core.User{Timezone: form.Timezone, Currency: form.Currency}); err != nil {
				log.FromContext(r.Context()).WarnContext(r.Context(), "Session preferences not updated",
					log.FieldOperation, log.OpUpdate,
					log.FieldError, err)
			}
		}
	}
	s.mutated(w, msgPreferencesSaved)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	form, err := forms.ParseChangePassword(r.PostForm)
	if err != nil {
		s.mutationFailed(w, r, log.OpUpdate, err, msgPasswordChangeFailed)
		return
	}
	if err := s.backend.ChangePassword(r.Context(), currentUser(r).Email, form.NewPassword); err != nil {
		s.mutationFailed(w, r, log.OpUpdate, err, msgPasswordChangeFailed)
		return
	}
	NewHTMXResponse().
		TriggerFormReset().
		TriggerSuccessNotification(msgPasswordChanged).
		Write(w)
}

func (s *Server) handleUploadProfileImage(w http.ResponseWriter, r *http.Request) {
	// Allow some room for the multipart envelope around the image.
	if errResp := ParseMultipartOrFail(w, r, forms.MaxProfileImageSize+(1<<20)); errResp != nil {
		errResp.Write(w)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		s.mutationFailed(w, r, log.OpUpdate, &forms.Error{Message: forms.MsgImageMissing, Field: "image"}, msgImageUploadFailed)
		return
	}
	defer file.Close()

	img, err := forms.ParseProfileImage(file, header)
	if err != nil {
		s.mutationFailed(w, r, log.OpUpdate, err, msgImageUploadFailed)
		return
	}
	user := currentUser(r)
	if err := s.backend.UploadProfileImage(r.Context(), user.Email, img.FileName, img.ContentType, img.Content); err != nil {
		s.mutationFailed(w, r, log.OpUpdate, err, msgImageUploadFailed)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Profile image uploaded",
		log.FieldUserEmail, user.Email,
		"size", img.Size,
		"content_type", img.ContentType)
	s.mutated(w, msgImageUploaded)
}

func (s *Server) handleDeleteProfileImage(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.DeleteProfileImage(r.Context(), currentUser(r).Email); err != nil {
		s.mutationFailed(w, r, log.OpDelete, err, msgImageDeleteFailed)
		return
	}
	s.mutated(w, msgImageDeleted)
}
