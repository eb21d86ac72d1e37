package service

import (
	"context"
	"strings"

	"clocklayer/internal/blob"
	profilemodels "clocklayer/internal/profile/models"
	"clocklayer/internal/signup/models"
	id "clocklayer/pkg/domain"
	dErrors "clocklayer/pkg/domain-errors"
	"clocklayer/pkg/platform/audit"
)

// SubmitProfile saves name, username and an optional new picture, then moves
// to the phone step. The picture is uploaded before the record references it.
func (s *Service) SubmitProfile(ctx context.Context, sessionID id.SessionID, in models.ProfileInput) (*models.View, error) {
	return asView(s.run(ctx, "submit_profile", sessionID, func(ctx context.Context) (any, error) {
		return s.submitProfile(ctx, sessionID, in)
	}))
}

func (s *Service) submitProfile(ctx context.Context, sessionID id.SessionID, in models.ProfileInput) (*models.View, error) {
	sess, err := s.prepare(ctx, sessionID, models.StepProfile)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	username := strings.TrimSpace(in.Username)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if username == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "username is required")
	}

	imageURL := sess.Draft.ProfileImageURL
	if in.Image != nil {
		uploaded, err := s.upload(ctx, sess.IdentityID, in.Image)
		if err != nil {
			return nil, err
		}
		imageURL = &uploaded
	}

	rec, err := s.profiles.MergeWrite(ctx, sess.IdentityID, profilemodels.Patch{
		Name:            &name,
		Username:        &username,
		ProfileImageURL: imageURL,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not update your profile, please try again")
	}

	sess.Draft.Name = rec.Name
	sess.Draft.Username = rec.Username
	sess.Draft.ProfileImageURL = rec.ProfileImageURL
	if err := sess.Advance(); err != nil {
		return nil, err
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventProfileUpdated, sess.IdentityID)
	return s.view(sess), nil
}

func (s *Service) upload(ctx context.Context, identityID id.IdentityID, img *models.ImageUpload) (string, error) {
	if len(img.Data) == 0 {
		return "", dErrors.New(dErrors.CodeValidation, "image is empty")
	}
	if len(img.Data) > blob.MaxImageBytes {
		return "", dErrors.New(dErrors.CodeValidation, "image is too large")
	}
	if !blob.AllowedImageType(img.ContentType) {
		return "", dErrors.New(dErrors.CodeValidation, "unsupported image type")
	}
	objectPath, err := blob.ProfileImagePath(identityID, img.FileName)
	if err != nil {
		return "", err
	}
	url, err := s.blobs.Upload(ctx, objectPath, img.ContentType, img.Data)
	if err != nil {
		return "", externalError(err, "image upload failed, please try again")
	}
	return url, nil
}
