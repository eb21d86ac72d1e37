package dashboard

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"clocklayer/internal/profile/models"
	"clocklayer/internal/profile/store/memory"
	id "clocklayer/pkg/domain"
	dErrors "clocklayer/pkg/domain-errors"
)

const iphoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"

type DashboardSuite struct {
	suite.Suite
	ctx      context.Context
	profiles *memory.InMemoryStore
	service  *Service
}

func TestDashboardSuite(t *testing.T) {
	suite.Run(t, new(DashboardSuite))
}

func (s *DashboardSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.ctx = context.Background()
	s.profiles = memory.NewInMemoryStore(logger)
	s.service = New(s.profiles, "https://clocklayer.test/", WithLogger(logger))
}

func (s *DashboardSuite) write(identityID id.IdentityID, patch models.Patch) {
	_, err := s.profiles.MergeWrite(s.ctx, identityID, patch)
	s.Require().NoError(err)
}

func str(v string) *string { return &v }

func (s *DashboardSuite) TestMe() {
	ua := iphoneUA
	created := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	s.write("uidAda", models.Patch{Name: str("Ada"), Username: str("ada"), SignupUserAgent: &ua, CreatedAt: &created})
	s.write("uidAda", models.Admission("board-ada", 2100, created.Add(time.Hour)))

	card, err := s.service.Me(s.ctx, "uidAda")
	s.Require().NoError(err)
	s.Equal("Ada", card.Name)
	s.True(card.Admitted)
	s.Equal(2100, card.TaskLedgerPoints)
	s.Equal("https://clocklayer.test/waitlist?ref=ada", card.ReferralLink)
	s.Equal("https://placehold.co/100x100.png?text=A", card.AvatarURL)
	s.Equal("iOS Device", card.Device.Label)
}

func (s *DashboardSuite) TestMeErrors() {
	_, err := s.service.Me(s.ctx, "")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.service.Me(s.ctx, "uidGhost")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *DashboardSuite) TestUpdateMe() {
	s.write("uidAda", models.Patch{Name: str("Ada"), Username: str("ada")})

	card, err := s.service.UpdateMe(s.ctx, "uidAda", Update{Name: str(" Ada L. "), Phone: str("+44 20 7946 0958")})
	s.Require().NoError(err)
	s.Equal("Ada L.", card.Name)
	s.Equal("ada", card.Username)
	s.Equal("+442079460958", card.Phone)

	_, err = s.service.UpdateMe(s.ctx, "uidAda", Update{Username: str("ada lovelace")})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.UpdateMe(s.ctx, "uidAda", Update{Phone: str("12345")})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.UpdateMe(s.ctx, "uidNobody", Update{Name: str("x")})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.profiles.Get(s.ctx, "uidNobody")
	s.Error(err)
}

func (s *DashboardSuite) TestReferrals() {
	alice := id.IdentityID("uidAlice")
	avatar := "https://cdn.test/bob.png"
	s.write(alice, models.Patch{Name: str("Alice"), Username: str("alice")})
	s.write("uidBob", models.Patch{Name: str("Bob"), ProfileImageURL: &avatar, ReferredBy: &alice})
	s.write("uidCara", models.Patch{Name: str("cara"), ReferredBy: &alice})
	s.write("uidDan", models.Patch{Name: str("Dan")})

	refs, err := s.service.Referrals(s.ctx, alice)
	s.Require().NoError(err)
	s.Require().Len(refs, 2)
	byID := map[id.IdentityID]Referral{}
	for _, r := range refs {
		byID[r.ID] = r
	}
	s.Equal(avatar, byID["uidBob"].AvatarURL)
	s.Equal("https://placehold.co/100x100.png?text=c", byID["uidCara"].AvatarURL)
}

func (s *DashboardSuite) TestWatchReferrals() {
	alice := id.IdentityID("uidAlice")
	s.write(alice, models.Patch{Name: str("Alice"), Username: str("alice")})

	ctx, cancel := context.WithCancel(s.ctx)
	ch, err := s.service.WatchReferrals(ctx, alice)
	s.Require().NoError(err)

	select {
	case refs := <-ch:
		s.Empty(refs)
	case <-time.After(time.Second):
		s.FailNow("no initial referral list")
	}

	s.write("uidBob", models.Patch{Name: str("Bob"), ReferredBy: &alice})
	s.Eventually(func() bool {
		select {
		case refs := <-ch:
			return len(refs) == 1 && refs[0].ID == "uidBob"
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	cancel()
	s.Eventually(func() bool {
		for {
			select {
			case _, open := <-ch:
				if !open {
					return true
				}
			default:
				return false
			}
		}
	}, time.Second, 10*time.Millisecond)
}
