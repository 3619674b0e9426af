package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tmwgo/server/internal/link"
	"github.com/tmwgo/server/internal/login"
	"github.com/tmwgo/server/internal/net"
	"github.com/tmwgo/server/internal/net/packet"
	"github.com/tmwgo/server/internal/persist"
)

// RegisterAll registers the account server handlers into the registry.
func (s *Service) RegisterAll(reg *packet.Registry) {
	connected := []packet.SessionState{packet.StateConnected}
	loggedIn := []packet.SessionState{packet.StateLoggedIn}

	reg.Register(packet.C_OPCODE_REGISTER, connected, s.adapt(s.HandleRegister))
	reg.Register(packet.C_OPCODE_UNREGISTER, connected, s.adapt(s.HandleUnregister))
	reg.Register(packet.C_OPCODE_LOGIN, connected, s.adapt(s.HandleLogin))

	reg.Register(packet.C_OPCODE_LOGOUT, loggedIn, s.adapt(s.HandleLogout))
	reg.Register(packet.C_OPCODE_PASSWORD_CHANGE, loggedIn, s.adapt(s.HandlePasswordChange))
	reg.Register(packet.C_OPCODE_CHAR_CREATE, loggedIn, s.adapt(s.HandleCharCreate))
	reg.Register(packet.C_OPCODE_CHAR_SELECT, loggedIn, s.adapt(s.HandleCharSelect))
}

type handlerFunc func(sess *net.Session, r *packet.Reader) (*packet.Writer, error)

func (s *Service) adapt(fn handlerFunc) packet.HandlerFunc {
	return func(sess any, r *packet.Reader) (*packet.Writer, error) {
		return fn(sess.(*net.Session), r)
	}
}

func result(opcode uint16, code byte) *packet.Writer {
	w := packet.NewWriterWithOpcode(opcode)
	w.WriteUint8(code)
	return w
}

// HandleRegister processes C_OPCODE_REGISTER: username, password.
// Registering does not log the connection in.
func (s *Service) HandleRegister(sess *net.Session, r *packet.Reader) (*packet.Writer, error) {
	username := normalizeUsername(r.ReadString())
	password := r.ReadString()
	if r.Overrun() {
		return nil, packet.ErrTruncated
	}
	const op = packet.S_OPCODE_REGISTER_RESPONSE

	if !validCredentials(username, password) {
		return result(op, packet.ResultInvalidArgument), nil
	}

	ip := sess.IP
	return s.post(sess, op, func(ctx context.Context) func() {
		code := s.register(ctx, username, password, ip)
		return func() { reply(sess, result(op, code)) }
	})
}

func (s *Service) register(ctx context.Context, username, password, ip string) byte {
	existing, err := s.accounts.Load(ctx, username)
	if err != nil {
		s.log.Error("載入帳號資料庫錯誤", zap.Error(err))
		return packet.ResultFailure
	}
	if existing != nil {
		return packet.ResultExistsUsername
	}

	acc, err := s.accounts.Create(ctx, username, password)
	if errors.Is(err, persist.ErrExists) {
		return packet.ResultExistsUsername
	}
	if err != nil {
		s.log.Error("建立帳號資料庫錯誤", zap.Error(err))
		return packet.ResultFailure
	}

	s.log.Info(fmt.Sprintf("建立帳號  帳號=%s  ip=%s", acc.Username, ip))
	return packet.ResultOK
}

// HandleUnregister processes C_OPCODE_UNREGISTER: username, password.
// The account is held as online while it is being deleted, so it cannot
// be logged into halfway through.
func (s *Service) HandleUnregister(sess *net.Session, r *packet.Reader) (*packet.Writer, error) {
	username := normalizeUsername(r.ReadString())
	password := r.ReadString()
	if r.Overrun() {
		return nil, packet.ErrTruncated
	}
	const op = packet.S_OPCODE_UNREGISTER_RESPONSE

	if !validCredentials(username, password) {
		return result(op, packet.ResultInvalidArgument), nil
	}

	return s.post(sess, op, func(ctx context.Context) func() {
		acc, err := s.authenticate(ctx, username, password)
		if err != nil && !errors.Is(err, ErrInvalidCredentials) {
			s.log.Error("驗證帳號資料庫錯誤", zap.Error(err))
		}
		return func() {
			if acc == nil {
				reply(sess, result(op, packet.ResultFailure))
				return
			}
			if _, online := s.online[acc.ID]; online {
				reply(sess, result(op, packet.ResultFailure))
				return
			}
			s.online[acc.ID] = sess.ID
			s.deleting[sess.ID] = acc.ID
			if !s.submit(sess, s.deleteAccount(sess, acc)) {
				s.release(sess)
				reply(sess, result(op, packet.ResultFailure))
			}
		}
	})
}

func (s *Service) deleteAccount(sess *net.Session, acc *persist.AccountRow) step {
	const op = packet.S_OPCODE_UNREGISTER_RESPONSE
	ip := sess.IP
	return func(ctx context.Context) func() {
		err := s.accounts.Delete(ctx, acc.ID)
		return func() {
			s.release(sess)
			if err != nil {
				s.log.Error("刪除帳號資料庫錯誤", zap.Error(err))
				reply(sess, result(op, packet.ResultFailure))
				return
			}
			s.log.Info(fmt.Sprintf("刪除帳號  帳號=%s  ip=%s", acc.Username, ip))
			reply(sess, result(op, packet.ResultOK))
		}
	}
}

// HandleLogin processes C_OPCODE_LOGIN: username, password.
// On success the response lists the account's characters:
// [result][count] then per character [slot][name][map][x][y].
func (s *Service) HandleLogin(sess *net.Session, r *packet.Reader) (*packet.Writer, error) {
	username := normalizeUsername(r.ReadString())
	password := r.ReadString()
	if r.Overrun() {
		return nil, packet.ErrTruncated
	}
	const op = packet.S_OPCODE_LOGIN_RESPONSE

	if !validCredentials(username, password) {
		return result(op, packet.ResultInvalidArgument), nil
	}

	ip := sess.IP
	return s.post(sess, op, func(ctx context.Context) func() {
		acc, err := s.authenticate(ctx, username, password)
		if errors.Is(err, ErrInvalidCredentials) {
			s.log.Info(fmt.Sprintf("登入失敗  帳號=%s  ip=%s", username, ip))
			return func() { reply(sess, result(op, packet.ResultFailure)) }
		}
		if err != nil {
			s.log.Error("驗證帳號資料庫錯誤", zap.Error(err))
			return func() { reply(sess, result(op, packet.ResultFailure)) }
		}
		chars, err := s.chars.ListByAccount(ctx, acc.ID)
		if err != nil {
			s.log.Error("載入角色列表", zap.Error(err))
			return func() { reply(sess, result(op, packet.ResultFailure)) }
		}
		return func() { s.completeLogin(sess, acc, chars) }
	})
}

// completeLogin binds the account to the session. Loop only.
func (s *Service) completeLogin(sess *net.Session, acc *persist.AccountRow, chars []persist.CharacterRow) {
	const op = packet.S_OPCODE_LOGIN_RESPONSE

	// One connection per account.
	if _, online := s.online[acc.ID]; online {
		reply(sess, result(op, packet.ResultFailure))
		return
	}

	s.sessions[sess.ID] = &loggedIn{account: acc, chars: chars}
	s.online[acc.ID] = sess.ID
	sess.AccountName = acc.Username
	sess.SetState(packet.StateLoggedIn)

	s.log.Info(fmt.Sprintf("登入成功  帳號=%s  ip=%s", acc.Username, sess.IP))

	w := result(op, packet.ResultOK)
	w.WriteUint8(byte(len(chars)))
	for _, c := range chars {
		writeCharacter(w, &c)
	}
	reply(sess, w)

	s.submit(sess, func(ctx context.Context) func() {
		if err := s.accounts.UpdateLastLogin(ctx, acc.ID); err != nil {
			s.log.Error("更新最後登入時間資料庫錯誤", zap.Error(err))
		}
		return nil
	})
}

func writeCharacter(w *packet.Writer, c *persist.CharacterRow) {
	w.WriteUint8(byte(c.Slot))
	w.WriteString(c.Name)
	w.WriteUint16(uint16(c.MapID))
	w.WriteUint16(uint16(c.X))
	w.WriteUint16(uint16(c.Y))
}

// HandleLogout processes C_OPCODE_LOGOUT. The connection stays open.
func (s *Service) HandleLogout(sess *net.Session, _ *packet.Reader) (*packet.Writer, error) {
	name := sess.AccountName
	s.logout(sess)
	s.log.Info(fmt.Sprintf("登出  帳號=%s", name))
	return result(packet.S_OPCODE_LOGOUT_RESPONSE, packet.ResultOK), nil
}

// HandlePasswordChange processes C_OPCODE_PASSWORD_CHANGE: old, new.
func (s *Service) HandlePasswordChange(sess *net.Session, r *packet.Reader) (*packet.Writer, error) {
	oldPassword := r.ReadString()
	newPassword := r.ReadString()
	if r.Overrun() {
		return nil, packet.ErrTruncated
	}
	const op = packet.S_OPCODE_PASSWORD_CHANGE_RESPONSE

	st, ok := s.sessions[sess.ID]
	if !ok {
		return result(op, packet.ResultNoLogin), nil
	}
	if !lengthBetween(newPassword, MinPasswordLength, MaxPasswordLength) {
		return result(op, packet.ResultInvalidArgument), nil
	}

	acc := *st.account
	return s.post(sess, op, func(ctx context.Context) func() {
		if !s.accounts.ValidatePassword(acc.PasswordHash, oldPassword) {
			return func() { reply(sess, result(op, packet.ResultFailure)) }
		}
		if err := s.accounts.UpdatePassword(ctx, acc.ID, newPassword); err != nil {
			s.log.Error("更新密碼資料庫錯誤", zap.Error(err))
			return func() { reply(sess, result(op, packet.ResultFailure)) }
		}
		fresh, err := s.accounts.Load(ctx, acc.Username)
		if err != nil {
			s.log.Warn("重新載入帳號失敗", zap.String("account", acc.Username), zap.Error(err))
		}
		return func() {
			if st, ok := s.sessions[sess.ID]; ok && fresh != nil {
				st.account = fresh
			}
			s.log.Info(fmt.Sprintf("變更密碼  帳號=%s", acc.Username))
			reply(sess, result(op, packet.ResultOK))
		}
	})
}

// HandleCharCreate processes C_OPCODE_CHAR_CREATE: name.
// New characters start at the configured map and position in the lowest
// free slot.
func (s *Service) HandleCharCreate(sess *net.Session, r *packet.Reader) (*packet.Writer, error) {
	name := r.ReadString()
	if r.Overrun() {
		return nil, packet.ErrTruncated
	}
	const op = packet.S_OPCODE_CHAR_CREATE_RESPONSE

	st, ok := s.sessions[sess.ID]
	if !ok {
		return result(op, packet.ResultNoLogin), nil
	}
	if !lengthBetween(name, MinNameLength, MaxNameLength) {
		return result(op, packet.ResultInvalidArgument), nil
	}
	if len(st.chars) >= s.cfg.MaxCharacters {
		return result(op, packet.ResultTooMany), nil
	}

	row := &persist.CharacterRow{
		AccountID: st.account.ID,
		Slot:      freeSlot(st.chars),
		Name:      name,
		MapID:     s.cfg.StartMap,
		X:         s.cfg.StartX,
		Y:         s.cfg.StartY,
	}
	username := st.account.Username
	return s.post(sess, op, func(ctx context.Context) func() {
		code := s.createCharacter(ctx, row)
		return func() {
			if code == packet.ResultOK {
				if st, ok := s.sessions[sess.ID]; ok {
					st.chars = append(st.chars, *row)
				}
				s.log.Info(fmt.Sprintf("建立角色  帳號=%s  角色=%s", username, name))
			}
			reply(sess, result(op, code))
		}
	})
}

func (s *Service) createCharacter(ctx context.Context, row *persist.CharacterRow) byte {
	exists, err := s.chars.NameExists(ctx, row.Name)
	if err != nil {
		s.log.Error("檢查角色名稱", zap.Error(err))
		return packet.ResultFailure
	}
	if exists {
		return packet.ResultExistsName
	}

	err = s.chars.Create(ctx, row)
	if errors.Is(err, persist.ErrExists) {
		return packet.ResultExistsName
	}
	if err != nil {
		s.log.Error("建立角色資料庫錯誤", zap.Error(err))
		return packet.ResultFailure
	}
	return packet.ResultOK
}

// HandleCharSelect processes C_OPCODE_CHAR_SELECT: slot.
// The authorization is published before the client hears the token, so the
// client may reach the game server before or after it.
// Response: [result] then on success [token:32][host][port].
func (s *Service) HandleCharSelect(sess *net.Session, r *packet.Reader) (*packet.Writer, error) {
	slot := int(r.ReadUint8())
	if r.Overrun() {
		return nil, packet.ErrTruncated
	}
	const op = packet.S_OPCODE_CHAR_SELECT_RESPONSE

	st, ok := s.sessions[sess.ID]
	if !ok {
		return result(op, packet.ResultNoLogin), nil
	}
	var char *persist.CharacterRow
	for i := range st.chars {
		if st.chars[i].Slot == slot {
			char = &st.chars[i]
			break
		}
	}
	if char == nil {
		return result(op, packet.ResultInvalidArgument), nil
	}

	auth := link.Authorization{
		Token:       login.NewToken(),
		CharacterID: char.ID,
		Account:     st.account.Username,
		IssuedAt:    time.Now(),
	}
	name := char.Name
	return s.post(sess, op, func(ctx context.Context) func() {
		if err := s.publisher.Publish(ctx, auth); err != nil {
			s.log.Error("發送登入授權失敗", zap.String("character", name), zap.Error(err))
			return func() { reply(sess, result(op, packet.ResultFailure)) }
		}
		return func() {
			s.log.Info(fmt.Sprintf("選擇角色  帳號=%s  角色=%s", auth.Account, name))
			w := result(op, packet.ResultOK)
			w.WriteFixedString(auth.Token, login.TokenLength)
			w.WriteString(s.game.Host)
			w.WriteUint16(uint16(s.game.Port))
			reply(sess, w)
		}
	})
}
