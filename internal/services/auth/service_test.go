package auth

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/neurodash/internal/dependencies/mocks"
	"github.com/mcoot/neurodash/internal/model"
	"github.com/mcoot/neurodash/internal/storage/memory"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *clockwork.FakeClock
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.service = New(s.storage, s.clock, DefaultConfig())
	s.ctx = context.Background()
}

// CreateGuestPlayer tests

func (s *ServiceSuite) TestCreateGuestPlayerSucceeds() {
	session, err := s.service.CreateGuestPlayer(s.ctx, "Alice")
	s.Require().NoError(err)

	s.NotEmpty(session.Token)
	s.Equal("Alice", session.Player.DisplayName)
	s.True(session.Player.IsGuest)
	s.NotEmpty(session.PlayerID)
}

func (s *ServiceSuite) TestCreateGuestPlayerPersistsPlayer() {
	session, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")

	player, err := s.storage.GetPlayer(s.ctx, session.PlayerID)
	s.Require().NoError(err)
	s.Equal("Alice", player.DisplayName)
}

func (s *ServiceSuite) TestCreateGuestPlayerSessionIsValid() {
	session, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")

	validated, err := s.service.ValidateSession(session.Token)
	s.Require().NoError(err)
	s.Equal(session.PlayerID, validated.PlayerID)
}

// RegisterPlayer tests

func (s *ServiceSuite) TestRegisterPlayerSucceeds() {
	session, err := s.service.RegisterPlayer(s.ctx, Registration{Username: "alice", Password: "password123", DisplayName: "Alice"})
	s.Require().NoError(err)

	s.NotEmpty(session.Token)
	s.Equal("Alice", session.Player.DisplayName)
	s.False(session.Player.IsGuest)
}

func (s *ServiceSuite) TestRegisterPlayerPersistsRegistration() {
	_, _ = s.service.RegisterPlayer(s.ctx, Registration{Username: "alice", Password: "password123", DisplayName: "Alice"})

	rp, err := s.storage.GetRegisteredPlayerByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("alice", rp.Username)
	s.NotEmpty(rp.PasswordHash)
	s.NotEqual("password123", rp.PasswordHash) // Should be hashed
}

func (s *ServiceSuite) TestRegisterPlayerFailsIfUsernameExists() {
	_, _ = s.service.RegisterPlayer(s.ctx, Registration{Username: "alice", Password: "password123", DisplayName: "Alice"})

	_, err := s.service.RegisterPlayer(s.ctx, Registration{Username: "alice", Password: "different", DisplayName: "Alice2"})
	s.ErrorIs(err, ErrUsernameExists)
}

// Login tests

func (s *ServiceSuite) TestLoginSucceeds() {
	_, _ = s.service.RegisterPlayer(s.ctx, Registration{Username: "alice", Password: "password123", DisplayName: "Alice"})

	session, err := s.service.Login(s.ctx, "alice", "password123")
	s.Require().NoError(err)

	s.NotEmpty(session.Token)
	s.Equal("Alice", session.Player.DisplayName)
}

func (s *ServiceSuite) TestLoginFailsWithWrongPassword() {
	_, _ = s.service.RegisterPlayer(s.ctx, Registration{Username: "alice", Password: "password123", DisplayName: "Alice"})

	_, err := s.service.Login(s.ctx, "alice", "wrongpassword")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServiceSuite) TestLoginFailsWithUnknownUser() {
	_, err := s.service.Login(s.ctx, "nobody", "password123")
	s.ErrorIs(err, ErrInvalidCredentials)
}

// ValidateSession tests

func (s *ServiceSuite) TestValidateSessionSucceeds() {
	session, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")

	validated, err := s.service.ValidateSession(session.Token)
	s.Require().NoError(err)
	s.Equal(session.Token, validated.Token)
}

func (s *ServiceSuite) TestValidateSessionFailsWithInvalidToken() {
	_, err := s.service.ValidateSession("invalid_token")
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestValidateSessionFailsWhenExpired() {
	session, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")

	// Advance time past expiration
	s.clock.Advance(25 * time.Hour)

	_, err := s.service.ValidateSession(session.Token)
	s.ErrorIs(err, ErrInvalidSession)
}

// InvalidateSession tests

func (s *ServiceSuite) TestInvalidateSessionRemovesSession() {
	session, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")

	s.service.InvalidateSession(session.Token)

	_, err := s.service.ValidateSession(session.Token)
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestInvalidateSessionNoopForUnknownToken() {
	// Should not panic
	s.service.InvalidateSession("unknown_token")
}

// GetPlayer tests

func (s *ServiceSuite) TestGetPlayerReturnsProfile() {
	session, _ := s.service.RegisterPlayer(s.ctx, Registration{
		Username:    "alice",
		Password:    "password123",
		FullName:    "Alice Liddell",
		DisplayName: "Alice",
	})

	player, err := s.service.GetPlayer(s.ctx, session.PlayerID)
	s.Require().NoError(err)
	s.Equal("alice", player.Username)
	s.Equal("Alice Liddell", player.FullName)
}

func (s *ServiceSuite) TestGetPlayerFailsForUnknownID() {
	_, err := s.service.GetPlayer(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ServiceSuite) TestCreateBotPlayer() {
	bot, err := s.service.CreateBotPlayer(s.ctx, "Bot", "random")
	s.Require().NoError(err)
	s.True(bot.IsBot)
	s.Equal("random", bot.BotStrategy)

	stored, err := s.storage.GetPlayer(s.ctx, bot.ID)
	s.Require().NoError(err)
	s.True(stored.IsBot)
}

func (s *ServiceSuite) TestRegisterPlayerRejectsBlankUsername() {
	_, err := s.service.RegisterPlayer(s.ctx, Registration{Username: "  ", Password: "pw"})
	s.ErrorIs(err, ErrInvalidUsername)
}

// RecordRound tests

func (s *ServiceSuite) finishedDuel(p1, p2 model.PlayerID, t1, t2 int64, p2FalseStart bool) *model.Duel {
	d := &model.Duel{
		Status:    model.DuelStatusFinished,
		Player1ID: p1,
		Player2ID: p2,
	}
	d.SetReactionTime(p1, t1)
	if p2FalseStart {
		d.SetFalseStart(p2)
	} else {
		d.SetReactionTime(p2, t2)
	}
	return d
}

func (s *ServiceSuite) TestRecordRoundUpdatesAverages() {
	alice, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")
	bob, _ := s.service.CreateGuestPlayer(s.ctx, "Bob")

	s.Require().NoError(s.service.RecordRound(s.ctx, s.finishedDuel(alice.PlayerID, bob.PlayerID, 200, 300, false)))
	s.Require().NoError(s.service.RecordRound(s.ctx, s.finishedDuel(alice.PlayerID, bob.PlayerID, 300, 500, false)))

	a, _ := s.service.GetPlayer(s.ctx, alice.PlayerID)
	b, _ := s.service.GetPlayer(s.ctx, bob.PlayerID)
	s.Equal(int64(250), a.AverageReactionTime)
	s.Equal(int64(2), a.ReactionSamples)
	s.Equal(int64(400), b.AverageReactionTime)
}

func (s *ServiceSuite) TestRecordRoundSkipsFalseStarts() {
	alice, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")
	bob, _ := s.service.CreateGuestPlayer(s.ctx, "Bob")

	s.Require().NoError(s.service.RecordRound(s.ctx, s.finishedDuel(alice.PlayerID, bob.PlayerID, 200, 0, true)))

	b, _ := s.service.GetPlayer(s.ctx, bob.PlayerID)
	s.Equal(int64(0), b.ReactionSamples)
	s.Equal(int64(0), b.AverageReactionTime)
}

func (s *ServiceSuite) TestRecordRoundIgnoresUnfinished() {
	alice, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")
	d := s.finishedDuel(alice.PlayerID, "bob", 200, 300, false)
	d.Status = model.DuelStatusStarted

	s.Require().NoError(s.service.RecordRound(s.ctx, d))

	a, _ := s.service.GetPlayer(s.ctx, alice.PlayerID)
	s.Equal(int64(0), a.ReactionSamples)
}

// CleanExpiredSessions tests

func (s *ServiceSuite) TestCleanExpiredSessionsRemovesExpired() {
	session1, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")

	// Advance time so session1 expires
	s.clock.Advance(25 * time.Hour)

	// Create a new session (not expired)
	session2, _ := s.service.CreateGuestPlayer(s.ctx, "Bob")

	s.service.CleanExpiredSessions()

	// session1 should be gone
	_, err := s.service.ValidateSession(session1.Token)
	s.ErrorIs(err, ErrInvalidSession)

	// session2 should still be valid
	_, err = s.service.ValidateSession(session2.Token)
	s.NoError(err)
}
