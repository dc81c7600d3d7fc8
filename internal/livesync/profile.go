package livesync

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"

	"campusconnect/internal/domain"
)

const (
	entityProfiles = "profiles"

	minSearchLen   = 2
	searchLimit    = 10
	maxUsernameLen = 32
	maxBioLen      = 500
)

// Profile holds the acting user's own profile.
type Profile struct {
	opts  Options
	store ProfilesStore
	media MediaStore
	items *Collection[domain.Profile]
}

func NewProfile(store ProfilesStore, media MediaStore, opts Options) (*Profile, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Profile{opts: opts, store: store, media: media, items: NewCollection[domain.Profile]()}, nil
}

func (p *Profile) Collection() *Collection[domain.Profile] { return p.items }

// Profile returns the loaded profile, if any.
func (p *Profile) Profile() (domain.Profile, bool) {
	return p.items.Get(p.opts.ActingUserID)
}

func (p *Profile) Open(ctx context.Context) error {
	p.items.SetLoading(true)
	defer p.items.SetLoading(false)

	rctx, cancel := p.opts.remote(ctx)
	defer cancel()
	prof, err := p.store.GetProfile(rctx, p.opts.ActingUserID)
	if err != nil {
		err = domain.FetchError("get profile", err)
		p.opts.fail(entityProfiles, err, "Failed to load profile", "Please try again.")
		return err
	}
	p.items.Replace([]domain.Profile{prof})
	return nil
}

func (p *Profile) Update(ctx context.Context, patch domain.ProfilePatch) (domain.Profile, error) {
	patch, err := normalizePatch(patch)
	if err != nil {
		return domain.Profile{}, err
	}
	if patch.IsEmpty() {
		if cur, ok := p.Profile(); ok {
			return cur, nil
		}
	}

	rctx, cancel := p.opts.remote(ctx)
	defer cancel()
	prof, err := p.store.UpdateProfile(rctx, p.opts.ActingUserID, patch)
	if err != nil {
		if !errors.Is(err, domain.ErrValidation) {
			err = domain.WriteError("update profile", err)
		}
		p.opts.fail(entityProfiles, err, "Error updating profile", "Please try again.")
		return domain.Profile{}, err
	}
	p.items.Replace([]domain.Profile{prof})
	p.opts.succeed("Profile updated", "Your profile has been updated successfully.")
	return prof, nil
}

// UploadAvatar replaces the profile picture and points the profile at it.
func (p *Profile) UploadAvatar(ctx context.Context, file domain.Upload) (domain.Profile, error) {
	if len(file.Data) == 0 {
		return domain.Profile{}, validation("file", "required")
	}

	var url string
	err := errors.New("no media store configured")
	if p.media != nil {
		rctx, cancel := p.opts.remote(ctx)
		key := p.opts.ActingUserID + "/avatar." + file.Ext()
		url, err = p.media.Upload(rctx, BucketProfilePictures, key, file, true)
		cancel()
	}
	if err != nil {
		err = domain.UploadError("upload avatar", err)
		p.opts.fail(entityProfiles, err, "Upload failed", "Failed to upload profile picture")
		return domain.Profile{}, err
	}
	return p.Update(ctx, domain.ProfilePatch{AvatarURL: &url})
}

func normalizePatch(patch domain.ProfilePatch) (domain.ProfilePatch, error) {
	fields := map[string]string{}
	trim := func(s *string) *string {
		if s == nil {
			return nil
		}
		return lo.ToPtr(strings.TrimSpace(*s))
	}
	patch.FullName = trim(patch.FullName)
	patch.Username = trim(patch.Username)
	patch.Branch = trim(patch.Branch)
	patch.YearOfStudy = trim(patch.YearOfStudy)
	patch.Bio = trim(patch.Bio)

	if patch.FullName != nil && *patch.FullName == "" {
		fields["full_name"] = "required"
	}
	if patch.Username != nil {
		switch {
		case *patch.Username == "":
			fields["username"] = "required"
		case len(*patch.Username) > maxUsernameLen:
			fields["username"] = "too long"
		case strings.ContainsAny(*patch.Username, " \t\n"):
			fields["username"] = "must not contain spaces"
		}
	}
	if patch.Bio != nil && len(*patch.Bio) > maxBioLen {
		fields["bio"] = "too long"
	}
	if patch.Skills != nil {
		skills := lo.Map(*patch.Skills, func(s string, _ int) string { return strings.TrimSpace(s) })
		skills = lo.Uniq(lo.Filter(skills, func(s string, _ int) bool { return s != "" }))
		patch.Skills = &skills
	}
	if len(fields) > 0 {
		return patch, domain.NewValidationError(fields)
	}
	return patch, nil
}

// SearchProfiles finds other users by name, username or branch. Queries
// shorter than two characters return nothing without asking the store.
func SearchProfiles(ctx context.Context, store ProfilesStore, actingUserID, query string) ([]domain.ProfileSummary, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minSearchLen {
		return []domain.ProfileSummary{}, nil
	}
	rows, err := store.SearchProfiles(ctx, query, actingUserID, searchLimit)
	if err != nil {
		return nil, domain.FetchError("search profiles", err)
	}
	rows = lo.Reject(rows, func(s domain.ProfileSummary, _ int) bool { return s.ID == actingUserID })
	if len(rows) > searchLimit {
		rows = rows[:searchLimit]
	}
	return rows, nil
}
