package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weddingtg/models"
)

func newFamilyService(t *testing.T) (*FamilyService, *recordingNotifier) {
	t.Helper()
	db := testDB(t)
	notifier := &recordingNotifier{}
	return NewFamilyService(db, notifier), notifier
}

func TestIssueCreatesGroupLazily(t *testing.T) {
	svc, _ := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)

	token, err := svc.Issue(g1.ID, nil)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	g1 = reloadGuest(t, svc.db, g1.ID)
	require.NotNil(t, g1.FamilyGroupID)

	var group models.FamilyGroup
	require.NoError(t, svc.db.First(&group, *g1.FamilyGroupID).Error)

	invite := loadInvite(t, svc.db, token)
	assert.Equal(t, models.InviteStatusPending, invite.Status)
	assert.Equal(t, group.ID, invite.FamilyGroupID)
	assert.Equal(t, g1.ID, invite.InviterGuestID)
	assert.Nil(t, invite.InviteeTelegramUserID)
	assert.WithinDuration(t, time.Now().Add(models.InviteTTL), invite.ExpiresAt, time.Minute)
}

func TestIssueReusesExistingGroup(t *testing.T) {
	svc, _ := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)

	t1, err := svc.Issue(g1.ID, nil)
	require.NoError(t, err)
	t2, err := svc.Issue(g1.ID, nil)
	require.NoError(t, err)
	require.NotEqual(t, t1, t2)

	assert.Equal(t, loadInvite(t, svc.db, t1).FamilyGroupID, loadInvite(t, svc.db, t2).FamilyGroupID)

	var groups int64
	svc.db.Model(&models.FamilyGroup{}).Count(&groups)
	assert.EqualValues(t, 1, groups)
}

func TestAcceptJoinsGroup(t *testing.T) {
	svc, notifier := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)
	g2 := newGuest(t, svc.db, 202)

	token, err := svc.Issue(g1.ID, nil)
	require.NoError(t, err)

	groupID, err := svc.Accept(token, g2.ID)
	require.NoError(t, err)

	g1 = reloadGuest(t, svc.db, g1.ID)
	g2 = reloadGuest(t, svc.db, g2.ID)
	require.NotNil(t, g1.FamilyGroupID)
	require.NotNil(t, g2.FamilyGroupID)
	assert.Equal(t, *g1.FamilyGroupID, groupID)
	assert.Equal(t, *g2.FamilyGroupID, groupID)

	invite := loadInvite(t, svc.db, token)
	assert.Equal(t, models.InviteStatusAccepted, invite.Status)
	require.NotNil(t, invite.UsedByGuestID)
	assert.Equal(t, g2.ID, *invite.UsedByGuestID)
	assert.NotNil(t, invite.AcceptedAt)
	assert.Nil(t, invite.DeclinedAt)

	// Inviter is told about the acceptance.
	msgs := notifier.messages()
	require.Len(t, msgs, 1)
	assert.EqualValues(t, 101, msgs[0].ChatID)

	// A full group cannot issue further invites.
	_, err = svc.Issue(g1.ID, nil)
	assert.ErrorIs(t, err, ErrGroupFull)
}

func TestAcceptTwiceIsInvalidState(t *testing.T) {
	svc, _ := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)
	g2 := newGuest(t, svc.db, 202)
	g3 := newGuest(t, svc.db, 303)

	token, err := svc.Issue(g1.ID, nil)
	require.NoError(t, err)

	_, err = svc.Accept(token, g2.ID)
	require.NoError(t, err)

	_, err = svc.Accept(token, g3.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestAcceptUnknownToken(t *testing.T) {
	svc, _ := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)

	_, err := svc.Accept("no-such-token", g1.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAcceptExpiredDeclinesLazily(t *testing.T) {
	svc, _ := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)
	g2 := newGuest(t, svc.db, 202)

	token, err := svc.Issue(g1.ID, nil)
	require.NoError(t, err)
	require.NoError(t, svc.db.Model(&models.InviteToken{}).Where("token = ?", token).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	_, err = svc.Accept(token, g2.ID)
	assert.ErrorIs(t, err, ErrExpired)

	// The expiry transition must have committed despite the error.
	invite := loadInvite(t, svc.db, token)
	assert.Equal(t, models.InviteStatusDeclined, invite.Status)
	assert.NotNil(t, invite.DeclinedAt)

	g2 = reloadGuest(t, svc.db, g2.ID)
	assert.Nil(t, g2.FamilyGroupID)
}

func TestAcceptHintedForbidsOthers(t *testing.T) {
	svc, _ := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)
	g2 := newGuest(t, svc.db, 202)
	g3 := newGuest(t, svc.db, 303)

	hint := g2.TelegramUserID
	token, err := svc.Issue(g1.ID, &hint)
	require.NoError(t, err)

	_, err = svc.Accept(token, g3.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Accept(token, g2.ID)
	assert.NoError(t, err)
}

func TestAcceptWhileInOtherGroupConflicts(t *testing.T) {
	svc, _ := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)
	g2 := newGuest(t, svc.db, 202)

	token, err := svc.Issue(g1.ID, nil)
	require.NoError(t, err)

	// g2 founds their own family first.
	_, err = svc.Issue(g2.ID, nil)
	require.NoError(t, err)

	_, err = svc.Accept(token, g2.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAcceptRechecksCapacity(t *testing.T) {
	svc, _ := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)
	g2 := newGuest(t, svc.db, 202)
	g3 := newGuest(t, svc.db, 303)

	// Two pending invites into the same group pass the issue-time check,
	// but only one acceptor fits.
	t1, err := svc.Issue(g1.ID, nil)
	require.NoError(t, err)
	t2, err := svc.Issue(g1.ID, nil)
	require.NoError(t, err)

	_, err = svc.Accept(t1, g2.ID)
	require.NoError(t, err)

	_, err = svc.Accept(t2, g3.ID)
	assert.ErrorIs(t, err, ErrGroupFull)

	g3 = reloadGuest(t, svc.db, g3.ID)
	assert.Nil(t, g3.FamilyGroupID)

	// Whatever the interleaving, membership never exceeds the cap.
	g1 = reloadGuest(t, svc.db, g1.ID)
	require.NotNil(t, g1.FamilyGroupID)
	var members int64
	svc.db.Model(&models.Guest{}).Where("family_group_id = ?", *g1.FamilyGroupID).Count(&members)
	assert.LessOrEqual(t, members, int64(models.MaxGroupMembers))
}

func TestCancelByInviter(t *testing.T) {
	svc, _ := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)
	g2 := newGuest(t, svc.db, 202)

	token, err := svc.Issue(g1.ID, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(token, g1.ID))
	invite := loadInvite(t, svc.db, token)
	assert.Equal(t, models.InviteStatusCanceled, invite.Status)
	assert.NotNil(t, invite.CanceledAt)

	_, err = svc.Accept(token, g2.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCancelByStrangerForbidden(t *testing.T) {
	svc, _ := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)
	g3 := newGuest(t, svc.db, 303)

	token, err := svc.Issue(g1.ID, nil)
	require.NoError(t, err)

	err = svc.Cancel(token, g3.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, models.InviteStatusPending, loadInvite(t, svc.db, token).Status)
}

func TestCancelByHintedInvitee(t *testing.T) {
	svc, _ := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)
	g2 := newGuest(t, svc.db, 202)

	hint := g2.TelegramUserID
	token, err := svc.Issue(g1.ID, &hint)
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(token, g2.ID))
	assert.Equal(t, models.InviteStatusCanceled, loadInvite(t, svc.db, token).Status)
}

func TestDeclineSetsTimestamp(t *testing.T) {
	svc, notifier := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)
	g2 := newGuest(t, svc.db, 202)

	hint := g2.TelegramUserID
	token, err := svc.Issue(g1.ID, &hint)
	require.NoError(t, err)

	require.NoError(t, svc.Decline(token, g2.ID))

	invite := loadInvite(t, svc.db, token)
	assert.Equal(t, models.InviteStatusDeclined, invite.Status)
	assert.NotNil(t, invite.DeclinedAt)
	assert.Nil(t, invite.AcceptedAt)

	msgs := notifier.messages()
	require.Len(t, msgs, 1)
	assert.EqualValues(t, 101, msgs[0].ChatID)

	g2 = reloadGuest(t, svc.db, g2.ID)
	assert.Nil(t, g2.FamilyGroupID)
}

func TestIncomingReturnsLatestPending(t *testing.T) {
	svc, _ := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)
	g2 := newGuest(t, svc.db, 202)

	invite, err := svc.Incoming(g2.ID)
	require.NoError(t, err)
	assert.Nil(t, invite)

	hint := g2.TelegramUserID
	t1, err := svc.Issue(g1.ID, &hint)
	require.NoError(t, err)
	t2, err := svc.Issue(g1.ID, &hint)
	require.NoError(t, err)
	// Force distinct creation times: sqlite timestamps can collide.
	require.NoError(t, svc.db.Model(&models.InviteToken{}).Where("token = ?", t2).
		Update("created_at", time.Now().Add(time.Minute)).Error)

	invite, err = svc.Incoming(g2.ID)
	require.NoError(t, err)
	require.NotNil(t, invite)
	assert.Equal(t, t2, invite.Token)

	require.NoError(t, svc.Cancel(t1, g1.ID))
	require.NoError(t, svc.Cancel(t2, g1.ID))

	invite, err = svc.Incoming(g2.ID)
	require.NoError(t, err)
	assert.Nil(t, invite)
}

func TestInviteInfoPublicView(t *testing.T) {
	svc, _ := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)
	g2 := newGuest(t, svc.db, 202)
	fullName := "Иван Иванов"
	require.NoError(t, svc.db.Model(&models.Profile{}).Where("guest_id = ?", g1.ID).
		Update("full_name", fullName).Error)

	token, err := svc.Issue(g1.ID, nil)
	require.NoError(t, err)

	info, err := svc.InviteInfo(token)
	require.NoError(t, err)
	assert.Equal(t, fullName, info.InviterName)
	assert.False(t, info.Used)
	assert.Equal(t, models.InviteStatusPending, info.Status)

	_, err = svc.Accept(token, g2.ID)
	require.NoError(t, err)

	info, err = svc.InviteInfo(token)
	require.NoError(t, err)
	assert.True(t, info.Used)
	assert.Equal(t, models.InviteStatusAccepted, info.Status)

	_, err = svc.InviteInfo("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatusListsMembers(t *testing.T) {
	svc, _ := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)
	g2 := newGuest(t, svc.db, 202)
	require.NoError(t, svc.db.Model(&models.Profile{}).Where("guest_id = ?", g2.ID).
		Update("rsvp_status", models.RSVPYes).Error)

	status, err := svc.Status(g1.ID)
	require.NoError(t, err)
	assert.Nil(t, status.FamilyGroupID)
	assert.Empty(t, status.Members)

	token, err := svc.Issue(g1.ID, nil)
	require.NoError(t, err)
	_, err = svc.Accept(token, g2.ID)
	require.NoError(t, err)

	status, err = svc.Status(g1.ID)
	require.NoError(t, err)
	require.NotNil(t, status.FamilyGroupID)
	require.Len(t, status.Members, 2)
	assert.EqualValues(t, 202, status.Members[1].TelegramUserID)
	assert.Equal(t, models.RSVPYes, status.Members[1].RSVP)
}

func TestLeaveDissolvesPair(t *testing.T) {
	svc, notifier := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)
	g2 := newGuest(t, svc.db, 202)

	token, err := svc.Issue(g1.ID, nil)
	require.NoError(t, err)
	groupID, err := svc.Accept(token, g2.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Leave(g1.ID))

	g1 = reloadGuest(t, svc.db, g1.ID)
	g2 = reloadGuest(t, svc.db, g2.ID)
	assert.Nil(t, g1.FamilyGroupID)
	assert.Nil(t, g2.FamilyGroupID)

	var count int64
	svc.db.Model(&models.FamilyGroup{}).Where("id = ?", groupID).Count(&count)
	assert.EqualValues(t, 0, count)

	// Remaining member was notified about the departure.
	msgs := notifier.messages()
	require.NotEmpty(t, msgs)
	assert.EqualValues(t, 202, msgs[len(msgs)-1].ChatID)
}

func TestLeaveCancelsPendingInvites(t *testing.T) {
	svc, _ := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)

	token, err := svc.Issue(g1.ID, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Leave(g1.ID))

	invite := loadInvite(t, svc.db, token)
	assert.Equal(t, models.InviteStatusCanceled, invite.Status)
	assert.NotNil(t, invite.CanceledAt)
	g1 = reloadGuest(t, svc.db, g1.ID)
	assert.Nil(t, g1.FamilyGroupID)
}

func TestLeaveWithoutGroupIsNoop(t *testing.T) {
	svc, _ := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)

	require.NoError(t, svc.Leave(g1.ID))
}

func TestRemovePartnerDissolvesFromEitherSide(t *testing.T) {
	for _, actor := range []string{"inviter", "acceptor"} {
		t.Run(actor, func(t *testing.T) {
			svc, notifier := newFamilyService(t)
			g1 := newGuest(t, svc.db, 101)
			g2 := newGuest(t, svc.db, 202)

			token, err := svc.Issue(g1.ID, nil)
			require.NoError(t, err)
			groupID, err := svc.Accept(token, g2.ID)
			require.NoError(t, err)

			acting, other := g1, g2
			if actor == "acceptor" {
				acting, other = g2, g1
			}

			require.NoError(t, svc.RemovePartner(acting.ID, nil))

			assert.Nil(t, reloadGuest(t, svc.db, g1.ID).FamilyGroupID)
			assert.Nil(t, reloadGuest(t, svc.db, g2.ID).FamilyGroupID)

			var count int64
			svc.db.Model(&models.FamilyGroup{}).Where("id = ?", groupID).Count(&count)
			assert.EqualValues(t, 0, count)

			msgs := notifier.messages()
			require.NotEmpty(t, msgs)
			assert.Equal(t, other.TelegramUserID, msgs[len(msgs)-1].ChatID)
		})
	}
}

func TestRemovePartnerSelfHintRejected(t *testing.T) {
	svc, _ := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)
	g2 := newGuest(t, svc.db, 202)

	token, err := svc.Issue(g1.ID, nil)
	require.NoError(t, err)
	_, err = svc.Accept(token, g2.ID)
	require.NoError(t, err)

	self := g1.TelegramUserID
	err = svc.RemovePartner(g1.ID, &self)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	// Nothing dissolved.
	assert.NotNil(t, reloadGuest(t, svc.db, g1.ID).FamilyGroupID)
}

func TestRemovePartnerLoneMemberClearsGroup(t *testing.T) {
	svc, _ := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)

	token, err := svc.Issue(g1.ID, nil)
	require.NoError(t, err)

	require.NoError(t, svc.RemovePartner(g1.ID, nil))

	g1 = reloadGuest(t, svc.db, g1.ID)
	assert.Nil(t, g1.FamilyGroupID)
	assert.Equal(t, models.InviteStatusCanceled, loadInvite(t, svc.db, token).Status)

	var count int64
	svc.db.Model(&models.FamilyGroup{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestRemovePartnerWithoutGroupIsNoop(t *testing.T) {
	svc, _ := newFamilyService(t)
	g1 := newGuest(t, svc.db, 101)

	require.NoError(t, svc.RemovePartner(g1.ID, nil))
}
