package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"clocklayer/internal/blob"
	"clocklayer/internal/identity"
	"clocklayer/internal/liveness"
	profilemodels "clocklayer/internal/profile/models"
	profilememory "clocklayer/internal/profile/store/memory"
	"clocklayer/internal/referral"
	"clocklayer/internal/signup/models"
	sessionmemory "clocklayer/internal/signup/store/memory"
	"clocklayer/internal/taskledger"
	"clocklayer/internal/waitlist"
	id "clocklayer/pkg/domain"
	dErrors "clocklayer/pkg/domain-errors"
	"clocklayer/pkg/platform/audit"
	"clocklayer/pkg/platform/audit/publisher"
	auditmemory "clocklayer/pkg/platform/audit/store/memory"
	"clocklayer/pkg/requestcontext"
)

var jpegFrame = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

type fakeTokens struct{}

func (fakeTokens) IssueAccessToken(identityID id.IdentityID, sessionID id.SessionID) (string, time.Time, error) {
	return "token-" + identityID.String(), time.Now().Add(time.Hour), nil
}

// countingLedger records confirmations before delegating.
type countingLedger struct {
	next  taskledger.Judge
	calls atomic.Int32
}

func (l *countingLedger) Confirm(ctx context.Context, identityID id.IdentityID, externalID string, points int) error {
	l.calls.Add(1)
	return l.next.Confirm(ctx, identityID, externalID, points)
}

// sendFailingGateway refuses every code request with err.
type sendFailingGateway struct {
	identity.Gateway
	err   error
	sends atomic.Int32
}

func (g *sendFailingGateway) SendPhoneCode(context.Context, string, string) (identity.ConfirmationHandle, error) {
	g.sends.Add(1)
	return "", g.err
}

// blockingJudge holds every evaluation until release is closed.
type blockingJudge struct {
	release chan struct{}
	calls   atomic.Int32
}

func (j *blockingJudge) Evaluate(ctx context.Context, _ liveness.Image) (liveness.Verdict, error) {
	j.calls.Add(1)
	select {
	case <-j.release:
		return liveness.Verdict{IsHuman: true, Confidence: 0.9}, nil
	case <-ctx.Done():
		return liveness.Verdict{}, ctx.Err()
	}
}

type SignupServiceSuite struct {
	suite.Suite
	ctx      context.Context
	sessions *sessionmemory.InMemoryStore
	gateway  *identity.Fake
	profiles *profilememory.InMemoryStore
	blobs    *blob.MemoryStore
	judge    *liveness.Fake
	ledger   *countingLedger
	counter  *waitlist.Counter
	stop     context.CancelFunc
	audits   *auditmemory.InMemoryStore
	deps     Deps
	service  *Service
}

func TestSignupServiceSuite(t *testing.T) {
	suite.Run(t, new(SignupServiceSuite))
}

func (s *SignupServiceSuite) SetupTest() {
	if s.stop != nil {
		s.stop()
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.ctx = context.Background()
	s.sessions = sessionmemory.NewInMemoryStore()
	s.gateway = identity.NewFake()
	s.profiles = profilememory.NewInMemoryStore(logger)
	s.blobs = blob.NewMemoryStore("https://cdn.clocklayer.test")
	s.judge = liveness.NewFake()
	s.ledger = &countingLedger{next: taskledger.New(s.profiles, taskledger.WithLogger(logger))}
	s.counter = waitlist.New(s.profiles, waitlist.WithLogger(logger))
	var runCtx context.Context
	runCtx, s.stop = context.WithCancel(context.Background())
	go func() { _ = s.counter.Run(runCtx) }()
	s.audits = auditmemory.NewInMemoryStore()
	s.deps = Deps{
		Sessions:  s.sessions,
		Gateway:   s.gateway,
		Profiles:  s.profiles,
		Blobs:     s.blobs,
		Liveness:  s.judge,
		Ledger:    s.ledger,
		Referrals: referral.New(s.profiles, logger),
		Counter:   s.counter,
		Tokens:    fakeTokens{},
	}
	s.service = New(s.deps,
		WithLogger(logger),
		WithAuditPublisher(publisher.NewPublisher(s.audits)),
	)
}

func (s *SignupServiceSuite) TearDownTest() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}

func (s *SignupServiceSuite) as(identityID id.IdentityID) context.Context {
	return requestcontext.WithIdentityID(s.ctx, identityID)
}

// seed stores a session already linked to identityID and sitting on step.
func (s *SignupServiceSuite) seed(identityID id.IdentityID, step models.Step) id.SessionID {
	sess := models.NewSession(id.NewSessionID(), "", time.Now(), time.Hour)
	sess.Link(identityID, models.Draft{Name: "Ada", Username: "ada"})
	sess.Step = step
	sess.MaxStep = step
	if step == models.StepPhone {
		sess.Challenge = models.Challenge{ID: "challenge-1", Generation: 1}
	}
	s.Require().NoError(s.sessions.Save(s.ctx, sess))
	return sess.ID
}

func (s *SignupServiceSuite) stored(sessionID id.SessionID) *models.Session {
	sess, err := s.sessions.Get(s.ctx, sessionID)
	s.Require().NoError(err)
	return sess
}

func (s *SignupServiceSuite) actions(identityID id.IdentityID) []string {
	events, err := s.audits.ListByIdentity(s.ctx, identityID)
	s.Require().NoError(err)
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Action)
	}
	return out
}

// requireJoinedSettles waits for the counter to reach joined and checks it
// stays there once the subscription has caught up.
func (s *SignupServiceSuite) requireJoinedSettles(joined int) {
	s.Require().Eventually(func() bool { return s.counter.State().Joined == joined }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	s.Equal(joined, s.counter.State().Joined)
}

func (s *SignupServiceSuite) requireCode(err error, code dErrors.Code) {
	s.Require().Error(err)
	s.Equal(code, dErrors.CodeOf(err), err.Error())
}

func (s *SignupServiceSuite) TestFullSignup() {
	s.gateway.Register("cred-ada", identity.LinkResult{
		ID:          "uidAda",
		DisplayName: "Ada Lovelace",
		Handle:      "ada",
		AvatarURL:   "https://pbs.example/avatar_normal.jpg",
	})

	started, err := s.service.Start(s.ctx, "")
	s.Require().NoError(err)
	sid := started.Session.ID
	s.Equal(models.StepConnect, started.Session.Step)

	linked, err := s.service.LinkIdentity(s.ctx, sid, models.LinkRequest{Provider: identity.ProviderTwitter, Credential: "cred-ada"})
	s.Require().NoError(err)
	s.False(linked.Returning)
	s.Equal("token-uidAda", linked.AccessToken)
	s.Equal(models.StepProfile, linked.View.Session.Step)
	s.Require().NotNil(linked.View.Session.Draft.ProfileImageURL)
	s.Equal("https://pbs.example/avatar.jpg", *linked.View.Session.Draft.ProfileImageURL)

	ctx := s.as("uidAda")
	v, err := s.service.SubmitProfile(ctx, sid, models.ProfileInput{
		Name:     "Ada L.",
		Username: "ada",
		Image:    &models.ImageUpload{FileName: "me.png", ContentType: "image/png", Data: []byte("\x89PNG")},
	})
	s.Require().NoError(err)
	s.Equal(models.StepPhone, v.Session.Step)
	s.True(v.Session.Challenge.Active())
	s.Require().NotNil(v.Session.Draft.ProfileImageURL)
	s.Contains(*v.Session.Draft.ProfileImageURL, "https://cdn.clocklayer.test/")

	v, err = s.service.RequestPhoneCode(ctx, sid, "+1 (555) 123-4567", "turnstile-token")
	s.Require().NoError(err)
	s.Equal(models.PhoneVerify, v.Session.Phone.Subphase)
	s.Equal("+15551234567", v.Session.Phone.PendingNumber)

	v, err = s.service.VerifyPhoneCode(ctx, sid, identity.DefaultFakeCode)
	s.Require().NoError(err)
	s.Equal(models.StepConfirm, v.Session.Step)
	s.False(v.Session.Challenge.Active())

	v, err = s.service.Confirm(ctx, sid)
	s.Require().NoError(err)
	s.Equal(models.StepLiveness, v.Session.Step)

	v, err = s.service.SubmitLiveness(ctx, sid, jpegFrame, "image/jpeg")
	s.Require().NoError(err)
	s.Equal(models.StepTasks, v.Session.Step)

	v, err = s.service.CompleteTasks(ctx, sid, models.TaskConnect{ExternalID: "board-ada", Points: 2450})
	s.Require().NoError(err)
	s.Equal(models.StepAdmitted, v.Session.Step)
	s.True(v.Session.Confirmed)
	s.Equal(1, v.Waitlist.Joined)
	s.Equal(waitlist.TotalSlots-1, v.Waitlist.Remaining)
	s.requireJoinedSettles(1)

	rec, err := s.profiles.Get(s.ctx, "uidAda")
	s.Require().NoError(err)
	s.Equal("Ada L.", rec.Name)
	s.Require().NotNil(rec.Phone)
	s.Equal("+15551234567", *rec.Phone)
	s.True(rec.HasCompletedTasks)
	s.Equal(2450, rec.TaskLedgerPoints)
	s.Nil(rec.ReferredBy)
	s.NotNil(rec.CreatedAt)

	s.Equal([]string{
		string(audit.EventUserCreated),
		string(audit.EventIdentityLinked),
		string(audit.EventProfileUpdated),
		string(audit.EventPhoneVerified),
		string(audit.EventWaitlistAdmitted),
	}, s.actions("uidAda"))
}

func (s *SignupServiceSuite) TestLinkIdentity() {
	s.Run("defaults for a provider without name or handle", func() {
		s.SetupTest()
		s.gateway.Register("cred-anon", identity.LinkResult{ID: "abcd1234"})
		v, err := s.service.Start(s.ctx, "")
		s.Require().NoError(err)

		out, err := s.service.LinkIdentity(s.ctx, v.Session.ID, models.LinkRequest{Provider: identity.ProviderGoogle, Credential: "cred-anon"})
		s.Require().NoError(err)
		s.Equal("Pioneer", out.View.Session.Draft.Name)
		s.Equal("pioneer_abcd", out.View.Session.Draft.Username)
		s.Nil(out.View.Session.Draft.ProfileImageURL)
	})

	s.Run("returning admitted user goes straight to the dashboard", func() {
		s.SetupTest()
		name := "Grace"
		_, err := s.profiles.MergeWrite(s.ctx, "uidGrace", profilemodels.Patch{Name: &name})
		s.Require().NoError(err)
		before, err := s.profiles.MergeWrite(s.ctx, "uidGrace", profilemodels.Admission("board-grace", 3000, time.Now()))
		s.Require().NoError(err)
		s.gateway.Register("cred-grace", identity.LinkResult{ID: "uidGrace", DisplayName: "Someone Else"})

		v, err := s.service.Start(s.ctx, "alice")
		s.Require().NoError(err)
		out, err := s.service.LinkIdentity(s.ctx, v.Session.ID, models.LinkRequest{Provider: identity.ProviderTwitter, Credential: "cred-grace"})
		s.Require().NoError(err)

		s.True(out.Returning)
		s.Equal("/dashboard", out.Redirect)
		s.Equal(models.StepAdmitted, out.View.Session.Step)
		s.Equal("Grace", out.View.Session.Draft.Name)

		after, err := s.profiles.Get(s.ctx, "uidGrace")
		s.Require().NoError(err)
		s.Equal(before.UpdatedAt, after.UpdatedAt)
		s.Nil(after.CreatedAt)
		s.Nil(after.ReferredBy)
		s.Equal("Grace", after.Name)
		s.requireJoinedSettles(1)
	})

	s.Run("account exists conflict", func() {
		s.SetupTest()
		s.gateway.MarkConflict("cred-dup")
		v, err := s.service.Start(s.ctx, "")
		s.Require().NoError(err)
		_, err = s.service.LinkIdentity(s.ctx, v.Session.ID, models.LinkRequest{Provider: identity.ProviderGoogle, Credential: "cred-dup"})
		s.requireCode(err, dErrors.CodeConflict)
		s.Equal(models.StepConnect, s.stored(v.Session.ID).Step)
	})

	s.Run("unsupported provider", func() {
		s.SetupTest()
		v, err := s.service.Start(s.ctx, "")
		s.Require().NoError(err)
		_, err = s.service.LinkIdentity(s.ctx, v.Session.ID, models.LinkRequest{Provider: "myspace.com", Credential: "x"})
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("unknown session", func() {
		s.SetupTest()
		_, err := s.service.LinkIdentity(s.ctx, id.NewSessionID(), models.LinkRequest{Provider: identity.ProviderGoogle, Credential: "x"})
		s.requireCode(err, dErrors.CodeNotFound)
	})
}

func (s *SignupServiceSuite) TestReferralAttribution() {
	seedAlice := func() {
		alice, username := "Alice", "alice"
		created := time.Now()
		_, err := s.profiles.MergeWrite(s.ctx, "uidAlice", profilemodels.Patch{Name: &alice, Username: &username, CreatedAt: &created})
		s.Require().NoError(err)
	}
	link := func(code, credential string, identityID id.IdentityID) *profilemodels.UserRecord {
		s.gateway.Register(credential, identity.LinkResult{ID: identityID})
		v, err := s.service.Start(s.ctx, code)
		s.Require().NoError(err)
		_, err = s.service.LinkIdentity(s.ctx, v.Session.ID, models.LinkRequest{Provider: identity.ProviderGoogle, Credential: credential})
		s.Require().NoError(err)
		rec, err := s.profiles.Get(s.ctx, identityID)
		s.Require().NoError(err)
		return rec
	}

	s.Run("known code records the referrer", func() {
		s.SetupTest()
		seedAlice()
		rec := link("alice", "cred-bob", "uidBob")
		s.Require().NotNil(rec.ReferredBy)
		s.Equal(id.IdentityID("uidAlice"), *rec.ReferredBy)
		s.Contains(s.actions("uidBob"), string(audit.EventReferralAttributed))
	})

	s.Run("unknown code is ignored", func() {
		s.SetupTest()
		seedAlice()
		rec := link("nobody", "cred-bob", "uidBob")
		s.Nil(rec.ReferredBy)
	})

	s.Run("self referral is ignored", func() {
		s.SetupTest()
		seedAlice()
		rec := link("alice", "cred-alice", "uidAlice")
		s.Nil(rec.ReferredBy)
	})
}

func (s *SignupServiceSuite) TestCallerMismatchResetsToConnect() {
	s.Run("anonymous caller", func() {
		s.SetupTest()
		sid := s.seed("uidAda", models.StepProfile)
		_, err := s.service.SubmitProfile(s.ctx, sid, models.ProfileInput{Name: "Ada", Username: "ada"})
		s.requireCode(err, dErrors.CodeUnauthorized)

		sess := s.stored(sid)
		s.Equal(models.StepConnect, sess.Step)
		s.Equal(models.StepConnect, sess.MaxStep)
		s.True(sess.IdentityID.IsZero())
		s.Empty(sess.Draft.Name)
	})

	s.Run("different identity", func() {
		s.SetupTest()
		sid := s.seed("uidAda", models.StepLiveness)
		_, err := s.service.SubmitLiveness(s.as("uidMallory"), sid, jpegFrame, "image/jpeg")
		s.requireCode(err, dErrors.CodeUnauthorized)
		s.Equal(0, s.judge.Calls())
		s.Equal(models.StepConnect, s.stored(sid).Step)
	})
}

func (s *SignupServiceSuite) TestSubmitProfile() {
	s.Run("missing username", func() {
		s.SetupTest()
		sid := s.seed("uidAda", models.StepProfile)
		_, err := s.service.SubmitProfile(s.as("uidAda"), sid, models.ProfileInput{Name: "Ada", Username: "  "})
		s.requireCode(err, dErrors.CodeValidation)
		s.Equal(models.StepProfile, s.stored(sid).Step)
	})

	s.Run("unsupported image type", func() {
		s.SetupTest()
		sid := s.seed("uidAda", models.StepProfile)
		_, err := s.service.SubmitProfile(s.as("uidAda"), sid, models.ProfileInput{
			Name:     "Ada",
			Username: "ada",
			Image:    &models.ImageUpload{FileName: "x.gif", ContentType: "image/gif", Data: []byte("GIF89a")},
		})
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("wrong step", func() {
		s.SetupTest()
		sid := s.seed("uidAda", models.StepConfirm)
		_, err := s.service.SubmitProfile(s.as("uidAda"), sid, models.ProfileInput{Name: "Ada", Username: "ada"})
		s.requireCode(err, dErrors.CodeInvalidState)
	})
}

func (s *SignupServiceSuite) TestPhone() {
	s.Run("malformed number", func() {
		s.SetupTest()
		sid := s.seed("uidAda", models.StepPhone)
		_, err := s.service.RequestPhoneCode(s.as("uidAda"), sid, "555-1234", "tok")
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("failed send spends the challenge token", func() {
		s.SetupTest()
		gw := &sendFailingGateway{Gateway: s.gateway, err: identity.ErrChallengeRejected}
		s.deps.Gateway = gw
		svc := New(s.deps, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		sid := s.seed("uidAda", models.StepPhone)
		ctx := s.as("uidAda")

		_, err := svc.RequestPhoneCode(ctx, sid, "+15551234567", "tok-1")
		s.requireCode(err, dErrors.CodeValidation)
		sess := s.stored(sid)
		s.Equal(2, sess.Challenge.Generation)
		s.Equal("tok-1", sess.Challenge.Spent)
		s.NotEqual("challenge-1", sess.Challenge.ID)

		_, err = svc.RequestPhoneCode(ctx, sid, "+15551234567", "tok-1")
		s.requireCode(err, dErrors.CodeValidation)
		s.Equal(int32(1), gw.sends.Load())
	})

	s.Run("provider outage is external", func() {
		s.SetupTest()
		s.deps.Gateway = &sendFailingGateway{Gateway: s.gateway, err: errors.New("connection reset")}
		svc := New(s.deps)
		sid := s.seed("uidAda", models.StepPhone)
		_, err := svc.RequestPhoneCode(s.as("uidAda"), sid, "+15551234567", "tok")
		s.requireCode(err, dErrors.CodeExternalService)
	})

	s.Run("wrong code keeps the handle", func() {
		s.SetupTest()
		sid := s.seed("uidAda", models.StepPhone)
		ctx := s.as("uidAda")
		_, err := s.service.RequestPhoneCode(ctx, sid, "+15551234567", "tok")
		s.Require().NoError(err)

		_, err = s.service.VerifyPhoneCode(ctx, sid, "000000")
		s.requireCode(err, dErrors.CodeValidation)
		s.Equal(models.PhoneVerify, s.stored(sid).Phone.Subphase)

		v, err := s.service.VerifyPhoneCode(ctx, sid, identity.DefaultFakeCode)
		s.Require().NoError(err)
		s.Equal(models.StepConfirm, v.Session.Step)
	})

	s.Run("expired code returns to entering a number", func() {
		s.SetupTest()
		sid := s.seed("uidAda", models.StepPhone)
		sess := s.stored(sid)
		sess.AwaitCode("+15551234567", "gone-handle")
		s.Require().NoError(s.sessions.Save(s.ctx, sess))

		_, err := s.service.VerifyPhoneCode(s.as("uidAda"), sid, "123456")
		s.requireCode(err, dErrors.CodeValidation)
		phone := s.stored(sid).Phone
		s.Equal(models.PhoneRequest, phone.Subphase)
		s.Empty(phone.Handle)
	})

	s.Run("change number", func() {
		s.SetupTest()
		sid := s.seed("uidAda", models.StepPhone)
		ctx := s.as("uidAda")
		_, err := s.service.RequestPhoneCode(ctx, sid, "+15551234567", "tok")
		s.Require().NoError(err)

		v, err := s.service.ChangePhoneNumber(ctx, sid)
		s.Require().NoError(err)
		s.Equal(models.PhoneRequest, v.Session.Phone.Subphase)
		s.Equal(models.StepPhone, v.Session.Step)
	})
}

func (s *SignupServiceSuite) TestNavigation() {
	s.Run("back keeps the draft and disposes the challenge", func() {
		s.SetupTest()
		sid := s.seed("uidAda", models.StepPhone)
		ctx := s.as("uidAda")
		v, err := s.service.Back(ctx, sid)
		s.Require().NoError(err)
		s.Equal(models.StepProfile, v.Session.Step)
		s.Equal("Ada", v.Session.Draft.Name)
		s.False(v.Session.Challenge.Active())

		v, err = s.service.JumpTo(ctx, sid, models.StepPhone)
		s.Require().NoError(err)
		s.True(v.Session.Challenge.Active())
		s.Equal(2, v.Session.Challenge.Generation)
	})

	s.Run("back stops at connect", func() {
		s.SetupTest()
		v, err := s.service.Start(s.ctx, "")
		s.Require().NoError(err)
		v, err = s.service.Back(s.ctx, v.Session.ID)
		s.Require().NoError(err)
		s.Equal(models.StepConnect, v.Session.Step)
	})

	s.Run("jump beyond the furthest step", func() {
		s.SetupTest()
		sid := s.seed("uidAda", models.StepConfirm)
		_, err := s.service.JumpTo(s.as("uidAda"), sid, models.StepLiveness)
		s.requireCode(err, dErrors.CodeInvalidState)
	})

	s.Run("navigating a linked session needs its identity", func() {
		s.SetupTest()
		sid := s.seed("uidAda", models.StepTasks)
		_, err := s.service.Back(s.ctx, sid)
		s.requireCode(err, dErrors.CodeUnauthorized)
		s.Equal(models.StepConnect, s.stored(sid).Step)

		sid = s.seed("uidAda", models.StepTasks)
		_, err = s.service.JumpTo(s.as("uidMallory"), sid, models.StepProfile)
		s.requireCode(err, dErrors.CodeUnauthorized)
		s.Equal(models.StepConnect, s.stored(sid).MaxStep)
	})

	s.Run("linking another account starts its progress over", func() {
		s.SetupTest()
		s.gateway.Register("cred-bob", identity.LinkResult{ID: "uidBob", DisplayName: "Bob"})
		sid := s.seed("uidAda", models.StepTasks)
		ada := s.as("uidAda")
		for range 5 {
			_, err := s.service.Back(ada, sid)
			s.Require().NoError(err)
		}
		s.Equal(models.StepConnect, s.stored(sid).Step)
		s.Equal(models.StepTasks, s.stored(sid).MaxStep)

		out, err := s.service.LinkIdentity(s.ctx, sid, models.LinkRequest{Provider: identity.ProviderTwitter, Credential: "cred-bob"})
		s.Require().NoError(err)
		s.Equal(models.StepProfile, out.View.Session.Step)
		s.Equal(models.StepProfile, out.View.Session.MaxStep)
		s.False(out.View.Session.Confirmed)

		bob := s.as("uidBob")
		_, err = s.service.JumpTo(bob, sid, models.StepTasks)
		s.requireCode(err, dErrors.CodeInvalidState)
		_, err = s.service.CompleteTasks(bob, sid, models.TaskConnect{ExternalID: "board-bob", Points: 5000})
		s.requireCode(err, dErrors.CodeInvalidState)

		rec, err := s.profiles.Get(s.ctx, "uidBob")
		s.Require().NoError(err)
		s.False(rec.HasCompletedTasks)
		s.Nil(rec.Phone)
	})

	s.Run("admitted sessions stay put", func() {
		s.SetupTest()
		sid := s.seed("uidAda", models.StepAdmitted)
		_, err := s.service.Back(s.ctx, sid)
		s.requireCode(err, dErrors.CodeInvalidState)
		_, err = s.service.JumpTo(s.ctx, sid, models.StepConnect)
		s.requireCode(err, dErrors.CodeInvalidState)
	})
}

func (s *SignupServiceSuite) TestLivenessThreshold() {
	s.Run("confidence of exactly 0.70 is rejected", func() {
		s.SetupTest()
		sid := s.seed("uidAda", models.StepLiveness)
		s.judge.SetVerdict(liveness.Verdict{IsHuman: true, Confidence: 0.70})

		_, err := s.service.SubmitLiveness(s.as("uidAda"), sid, jpegFrame, "image/jpeg")
		s.requireCode(err, dErrors.CodeVerdictRejected)
		s.Equal(models.StepLiveness, s.stored(sid).Step)
		s.Contains(s.actions("uidAda"), string(audit.EventLivenessRejected))
	})

	s.Run("confidence of 0.71 advances", func() {
		s.SetupTest()
		sid := s.seed("uidAda", models.StepLiveness)
		s.judge.SetVerdict(liveness.Verdict{IsHuman: true, Confidence: 0.71})

		v, err := s.service.SubmitLiveness(s.as("uidAda"), sid, jpegFrame, "image/jpeg")
		s.Require().NoError(err)
		s.Equal(models.StepTasks, v.Session.Step)
	})

	s.Run("not human", func() {
		s.SetupTest()
		sid := s.seed("uidAda", models.StepLiveness)
		s.judge.SetVerdict(liveness.Verdict{IsHuman: false, Confidence: 0.99})
		_, err := s.service.SubmitLiveness(s.as("uidAda"), sid, jpegFrame, "image/jpeg")
		s.requireCode(err, dErrors.CodeVerdictRejected)
	})

	s.Run("judge failure is external", func() {
		s.SetupTest()
		sid := s.seed("uidAda", models.StepLiveness)
		s.judge.SetError(errors.New("timeout"))
		_, err := s.service.SubmitLiveness(s.as("uidAda"), sid, jpegFrame, "image/jpeg")
		s.requireCode(err, dErrors.CodeExternalService)
		s.Equal(models.StepLiveness, s.stored(sid).Step)
	})

	s.Run("empty frame never reaches the judge", func() {
		s.SetupTest()
		sid := s.seed("uidAda", models.StepLiveness)
		_, err := s.service.SubmitLiveness(s.as("uidAda"), sid, nil, "image/jpeg")
		s.requireCode(err, dErrors.CodeValidation)
		s.Equal(0, s.judge.Calls())
	})
}

func (s *SignupServiceSuite) TestTaskGate() {
	s.Run("1999 points is rejected without contacting the ledger", func() {
		s.SetupTest()
		sid := s.seed("uidAda", models.StepTasks)
		_, err := s.service.CompleteTasks(s.as("uidAda"), sid, models.TaskConnect{ExternalID: "board-ada", Points: 1999})
		s.requireCode(err, dErrors.CodeVerdictRejected)
		s.Equal(int32(0), s.ledger.calls.Load())
		s.Equal(models.StepTasks, s.stored(sid).Step)
		s.Equal(0, s.counter.State().Joined)
	})

	s.Run("2000 points admits", func() {
		s.SetupTest()
		sid := s.seed("uidAda", models.StepTasks)
		v, err := s.service.CompleteTasks(s.as("uidAda"), sid, models.TaskConnect{ExternalID: "board-ada", Points: 2000})
		s.Require().NoError(err)
		s.Equal(models.StepAdmitted, v.Session.Step)
		s.Equal(int32(1), s.ledger.calls.Load())
		s.Equal(1, v.Waitlist.Joined)
		s.requireJoinedSettles(1)
	})

	s.Run("ledger refusal", func() {
		s.SetupTest()
		board := taskledger.NewFakeBoard()
		board.Set("board-ada", 1500)
		s.deps.Ledger = taskledger.New(s.profiles, taskledger.WithBoard(board))
		svc := New(s.deps)
		sid := s.seed("uidAda", models.StepTasks)

		_, err := svc.CompleteTasks(s.as("uidAda"), sid, models.TaskConnect{ExternalID: "board-ada", Points: 2500})
		s.requireCode(err, dErrors.CodeVerdictRejected)

		_, err = svc.CompleteTasks(s.as("uidAda"), sid, models.TaskConnect{ExternalID: "board-nobody", Points: 2500})
		s.requireCode(err, dErrors.CodeValidation)
	})
}

func (s *SignupServiceSuite) TestConcurrentResubmissionIsInert() {
	judge := &blockingJudge{release: make(chan struct{})}
	s.deps.Liveness = judge
	svc := New(s.deps)
	sid := s.seed("uidAda", models.StepLiveness)
	ctx := s.as("uidAda")

	edited := append([]byte{}, jpegFrame...)
	edited = append(edited, 0x01)
	frames := [][]byte{jpegFrame, edited}

	var wg sync.WaitGroup
	errs := make([]error, len(frames))
	for i, frame := range frames {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.SubmitLiveness(ctx, sid, frame, "image/jpeg")
		}()
	}
	s.Eventually(func() bool { return judge.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	_, err := svc.Back(ctx, sid)
	s.requireCode(err, dErrors.CodeConflict)

	close(judge.release)
	wg.Wait()

	s.NoError(errs[0])
	s.NoError(errs[1])
	s.Equal(int32(1), judge.calls.Load())
	s.Equal(models.StepTasks, s.stored(sid).Step)

	v, err := svc.Back(ctx, sid)
	s.Require().NoError(err)
	s.Equal(models.StepLiveness, v.Session.Step)
}

func (s *SignupServiceSuite) TestExpiredSession() {
	svc := New(s.deps, WithSessionTTL(time.Millisecond))
	v, err := svc.Start(s.ctx, "")
	s.Require().NoError(err)
	time.Sleep(5 * time.Millisecond)
	_, err = svc.Get(s.ctx, v.Session.ID)
	s.requireCode(err, dErrors.CodeNotFound)
}
