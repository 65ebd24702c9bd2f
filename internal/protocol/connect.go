package protocol

import (
	"context"
	"strings"

	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/database"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/logger"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/stomp"
	"github.com/rs/xid"
)

func (e *Engine) connect(frame *stomp.Frame) error {
	if e.State() == StateAuthenticated {
		return newError(KindProtocol, "client already connected", "")
	}

	headers := make(map[string]string, 4)
	for _, key := range []string{stomp.HeaderAcceptVersion, stomp.HeaderHost, stomp.HeaderLogin, stomp.HeaderPasscode} {
		value, err := requireHeader(frame, key)
		if err != nil {
			return err
		}
		headers[key] = value
	}

	opts := e.broker.options
	if !acceptsVersion(headers[stomp.HeaderAcceptVersion], opts.Version) {
		return newError(KindProtocol, "unsupported STOMP version", "accept-version "+headers[stomp.HeaderAcceptVersion])
	}
	if headers[stomp.HeaderHost] != opts.Host {
		return newError(KindProtocol, "unknown host", headers[stomp.HeaderHost])
	}

	user := headers[stomp.HeaderLogin]
	if err := e.broker.logins.Claim(user, e.connID); err != nil {
		return wrapError(err, KindAuthentication, "user already logged in")
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	status, err := e.broker.store.Login(ctx, e.connID, user, headers[stomp.HeaderPasscode])
	if err != nil {
		e.broker.logins.Release(e.connID)
		return wrapError(err, KindAuthentication, "login failed")
	}

	switch status {
	case database.AddedNewUser, database.LoggedIn:
	case database.WrongPassword:
		e.broker.logins.Release(e.connID)
		return newError(KindAuthentication, "wrong password", user)
	case database.AlreadyLoggedIn:
		e.broker.logins.Release(e.connID)
		return newError(KindAuthentication, "user already logged in", user)
	default:
		e.broker.logins.Release(e.connID)
		return newError(KindProtocol, "client already connected", status.String())
	}

	e.user = user
	e.state.Store(int32(StateAuthenticated))
	logger.InfoF("[conn %d] User %s %s", e.connID, user, status)

	e.reply(stomp.Connected(opts.Version, xid.New().String(), opts.ServerName))
	return nil
}

func acceptsVersion(header, version string) bool {
	for _, v := range strings.Split(header, ",") {
		if strings.TrimSpace(v) == version {
			return true
		}
	}
	return false
}
