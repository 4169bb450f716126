package auth

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sixDigits = regexp.MustCompile(`^\d{6}$`)

func newTestResetService(production bool) (*ResetService, *fakeUserRepo, *fakeMailer) {
	users := newFakeUserRepo()
	mailer := &fakeMailer{}
	return NewResetService(users, mailer, production), users, mailer
}

func TestRequestCode_unknownEmail(t *testing.T) {
	svc, _, _ := newTestResetService(false)

	_, err := svc.RequestCode(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, ErrUnknownEmail)
}

func TestResetRoundTrip(t *testing.T) {
	svc, users, mailer := newTestResetService(false)
	ctx := context.Background()

	user, err := users.Create(ctx, "amir", "a@x.com", "secret123")
	require.NoError(t, err)

	code, err := svc.RequestCode(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Regexp(t, sixDigits, code)
	assert.Equal(t, []string{"a@x.com"}, mailer.sent)
	assert.Contains(t, mailer.bodys[0], code)

	require.NoError(t, svc.ConsumeCode(ctx, "a@x.com", code, "newpass1"))

	ok, err := users.VerifyPassword(ctx, user.ID, "newpass1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = users.VerifyPassword(ctx, user.ID, "secret123")
	require.NoError(t, err)
	assert.False(t, ok, "old password must no longer verify")

	// Single use: the same code must not work twice.
	err = svc.ConsumeCode(ctx, "a@x.com", code, "anotherpass")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestConsumeCode_uniformFailure(t *testing.T) {
	svc, users, _ := newTestResetService(false)
	ctx := context.Background()

	user, err := users.Create(ctx, "amir", "a@x.com", "secret123")
	require.NoError(t, err)

	code, err := svc.RequestCode(ctx, "a@x.com")
	require.NoError(t, err)

	// Wrong code, wrong email, and expired code fail identically.
	assert.ErrorIs(t, svc.ConsumeCode(ctx, "a@x.com", "000000", "newpass1"), ErrInvalidOrExpiredCode)
	assert.ErrorIs(t, svc.ConsumeCode(ctx, "other@x.com", code, "newpass1"), ErrInvalidOrExpiredCode)

	users.expireCode(user.ID)
	assert.ErrorIs(t, svc.ConsumeCode(ctx, "a@x.com", code, "newpass1"), ErrInvalidOrExpiredCode)
}

func TestRequestCode_overwritesPriorCode(t *testing.T) {
	svc, users, _ := newTestResetService(false)
	ctx := context.Background()

	_, err := users.Create(ctx, "amir", "a@x.com", "secret123")
	require.NoError(t, err)

	first, err := svc.RequestCode(ctx, "a@x.com")
	require.NoError(t, err)
	second, err := svc.RequestCode(ctx, "a@x.com")
	require.NoError(t, err)

	if first != second {
		assert.ErrorIs(t, svc.ConsumeCode(ctx, "a@x.com", first, "newpass1"), ErrInvalidOrExpiredCode)
	}
	assert.NoError(t, svc.ConsumeCode(ctx, "a@x.com", second, "newpass1"))
}

func TestRequestCode_mailFailureStillIssues(t *testing.T) {
	svc, users, mailer := newTestResetService(false)
	ctx := context.Background()

	_, err := users.Create(ctx, "amir", "a@x.com", "secret123")
	require.NoError(t, err)
	mailer.fail = true

	code, err := svc.RequestCode(ctx, "a@x.com")
	require.NoError(t, err, "delivery failure must not fail the request")
	assert.Regexp(t, sixDigits, code)
	assert.NoError(t, svc.ConsumeCode(ctx, "a@x.com", code, "newpass1"))
}

func TestRequestCode_productionWithholdsCode(t *testing.T) {
	svc, users, mailer := newTestResetService(true)
	ctx := context.Background()

	_, err := users.Create(ctx, "amir", "a@x.com", "secret123")
	require.NoError(t, err)

	code, err := svc.RequestCode(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Empty(t, code, "production mode must not return the code")
	require.Len(t, mailer.bodys, 1, "the code still goes out by mail")
	assert.Regexp(t, `\d{6}`, mailer.bodys[0])
}
