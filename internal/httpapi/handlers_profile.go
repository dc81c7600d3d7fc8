package httpapi

import (
	"net/http"
	"strings"

	"campusconnect/internal/domain"
	"campusconnect/internal/livesync"
)

func (a *api) profileHook(r *http.Request) (*livesync.Profile, error) {
	userID, _ := CurrentUserID(r.Context())
	return livesync.NewProfile(a.stores.Profiles, a.stores.Media, a.hookOptions(userID, nil))
}

func (a *api) handleProfileGet(w http.ResponseWriter, r *http.Request) {
	p, err := a.profileHook(r)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if err := p.Open(r.Context()); err != nil {
		WriteDomainError(w, err)
		return
	}
	prof, _ := p.Profile()
	WriteJSON(w, http.StatusOK, prof)
}

func (a *api) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	var patch domain.ProfilePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	p, err := a.profileHook(r)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	prof, err := p.Update(r.Context(), patch)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, prof)
}

func (a *api) handleProfileAvatar(w http.ResponseWriter, r *http.Request) {
	files, err := readUploads(w, r, "file")
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	p, err := a.profileHook(r)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	prof, err := p.UploadAvatar(r.Context(), files[0])
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, prof)
}

type searchResponse struct {
	Results []domain.ProfileSummary `json:"results"`
}

func (a *api) handleUsersSearch(w http.ResponseWriter, r *http.Request) {
	userID, _ := CurrentUserID(r.Context())
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	ctx, cancel := a.remote(r.Context())
	defer cancel()
	out, err := livesync.SearchProfiles(ctx, a.stores.Profiles, userID, q)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, searchResponse{Results: out})
}

type connectionStatusResponse struct {
	State        domain.FriendState `json:"state"`
	ConnectionID string             `json:"connection_id,omitempty"`
}

func (a *api) handleConnectionStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := CurrentUserID(r.Context())
	other := strings.TrimSpace(r.PathValue("userID"))
	if other == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"user_id": "required"}))
		return
	}

	ctx, cancel := a.remote(r.Context())
	defer cancel()
	state, conn, err := livesync.LookupFriendState(ctx, a.stores.Connections, userID, other)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	resp := connectionStatusResponse{State: state}
	if conn != nil {
		resp.ConnectionID = conn.ID
	}
	WriteJSON(w, http.StatusOK, resp)
}

type uploadResponse struct {
	URLs []string `json:"urls"`
}

func (a *api) handleChatAttachments(w http.ResponseWriter, r *http.Request) {
	files, err := readUploads(w, r, "file")
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	userID, _ := CurrentUserID(r.Context())
	chat, err := livesync.NewChat(a.stores.Messages, a.stores.Media, r.PathValue("peerID"), a.hookOptions(userID, nil))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	defer chat.Close()

	urls, err := chat.UploadFiles(r.Context(), files)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, uploadResponse{URLs: urls})
}

func (a *api) handleFeedMedia(w http.ResponseWriter, r *http.Request) {
	files, err := readUploads(w, r, "file")
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	userID, _ := CurrentUserID(r.Context())
	feed, err := livesync.NewFeed(a.stores.Posts, a.stores.Media, a.hookOptions(userID, nil))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	defer feed.Close()

	urls, err := feed.UploadMedia(r.Context(), files)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, uploadResponse{URLs: urls})
}
