package restapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/restapi/internal/session"
	"github.com/nao1215/restapi/internal/store"
	"github.com/nao1215/restapi/pkg/event"
	"github.com/nao1215/restapi/pkg/middleware"
)

// handleHealth はヘルスチェックのハンドラを返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, msgHealth)
	}
}

// handleAuth はログインを処理するハンドラを返す。
// 成功するとセッション情報を返し、session_id Cookieを設定する。
func (s *Server) handleAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		fields, err := decodeFields(c)
		if err != nil {
			respondError(c, http.StatusBadRequest, msgInvalidBody)
			return
		}

		db, okDB := stringField(fields, "db")
		login, okLogin := stringField(fields, "username")
		password, okPassword := stringField(fields, "password")
		if !okDB || !okLogin || !okPassword {
			respondError(c, http.StatusBadRequest, msgMissingInput)
			return
		}

		sess, err := s.sessions.Authenticate(c.Request.Context(), db, login, password)
		if errors.Is(err, session.ErrInvalidCredentials) {
			s.logger.Info().Err(err).Str("login", login).Msg("認証に失敗")
			respondError(c, http.StatusBadRequest, msgInvalidCredentials)
			return
		}
		if err != nil {
			s.respondServerError(c, "auth", err)
			return
		}

		maxAge := int(time.Until(sess.ExpiresAt).Seconds())
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.SessionCookie, sess.Token, maxAge, "/", "", s.cfg.SecureCookie, true)

		s.emitEvent(c, sess.User.ID, event.AggregateTypeUser, strconv.FormatInt(sess.User.ID, 10),
			event.TypeUserAuthenticated, event.UserAuthenticatedData{Login: login, DB: db})

		c.JSON(http.StatusOK, s.sessions.Info(sess))
	}
}

// handleGetAll はエンティティの全レコード取得を処理するハンドラを返す。
// レコードが1件も無い場合は400を返す。
func (s *Server) handleGetAll() gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := s.records.SearchAll(c.Request.Context(), s.cfg.Entity)
		if err != nil {
			s.respondServerError(c, "get-all", err)
			return
		}
		if len(records) == 0 {
			respondError(c, http.StatusBadRequest, msgNoData)
			return
		}
		respondData(c, http.StatusOK, msgAllRetrieved, records)
	}
}

// handleGetData はID指定のレコード取得を処理するハンドラを返す。
// クエリパラメータは検索ドメイン形式に整形してログに出力するのみで、絞り込みには使わない。
func (s *Server) handleGetData() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			respondError(c, http.StatusBadRequest, msgNoQueryParams)
			return
		}

		if query := c.Request.URL.Query(); len(query) > 0 {
			s.logger.Debug().
				Int64("id", id).
				Interface("domain", formatQuery(query)).
				Str("request_id", middleware.GetRequestID(c)).
				Msg("get-data query params")
		}

		record, err := s.records.GetByID(c.Request.Context(), s.cfg.Entity, id)
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, http.StatusBadRequest, msgDataNotFound)
			return
		}
		if err != nil {
			s.respondServerError(c, "get-data", err)
			return
		}
		respondData(c, http.StatusOK, msgDataFound, record)
	}
}

// handleCreate はレコード作成を処理するハンドラを返す。
// nameフィールドは必須。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		fields, err := decodeFields(c)
		if err != nil {
			respondError(c, http.StatusBadRequest, msgInvalidBody)
			return
		}
		if !hasValue(fields, "name") {
			respondError(c, http.StatusBadRequest, msgNoName)
			return
		}

		created, err := s.records.Create(c.Request.Context(), s.cfg.Entity, fields)
		if err != nil {
			s.respondServerError(c, "create", err)
			return
		}

		s.emitEvent(c, middleware.GetUID(c), event.AggregateTypeRecord,
			event.RecordAggregateID(s.cfg.Entity, created.ID()), event.TypePatientCreated,
			event.RecordChangedData{Entity: s.cfg.Entity, RecordID: created.ID(), Fields: store.Sanitize(fields)})

		respondData(c, http.StatusCreated, msgCreated, created)
	}
}

// handleUpdate はレコード更新を処理するハンドラを返す。
// ボディのフィールドを既存のフィールドに上書きする。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			respondError(c, http.StatusBadRequest, msgNoID)
			return
		}
		fields, err := decodeFields(c)
		if err != nil {
			respondError(c, http.StatusBadRequest, msgInvalidBody)
			return
		}

		err = s.records.Update(c.Request.Context(), s.cfg.Entity, id, fields)
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, http.StatusBadRequest, msgIDNotExists)
			return
		}
		if err != nil {
			s.respondServerError(c, "update", err)
			return
		}

		s.emitEvent(c, middleware.GetUID(c), event.AggregateTypeRecord,
			event.RecordAggregateID(s.cfg.Entity, id), event.TypePatientUpdated,
			event.RecordChangedData{Entity: s.cfg.Entity, RecordID: id, Fields: store.Sanitize(fields)})

		respondMessage(c, msgUpdated)
	}
}

// handleDelete はレコード削除を処理するハンドラを返す。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			respondError(c, http.StatusBadRequest, msgNoID)
			return
		}

		err := s.records.Delete(c.Request.Context(), s.cfg.Entity, id)
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, http.StatusBadRequest, msgIDNotExists)
			return
		}
		if err != nil {
			s.respondServerError(c, "delete", err)
			return
		}

		s.emitEvent(c, middleware.GetUID(c), event.AggregateTypeRecord,
			event.RecordAggregateID(s.cfg.Entity, id), event.TypePatientDeleted,
			event.RecordDeletedData{Entity: s.cfg.Entity, RecordID: id})

		respondMessage(c, msgDeleted)
	}
}

// pathID はパスパラメータ "id" を正の整数として取り出す。
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// emitEvent は監査イベントを記録する。
// 記録に失敗した場合はログに出力するが、レスポンスには影響しない。
func (s *Server) emitEvent(c *gin.Context, actorID int64, aggregateType event.AggregateType, aggregateID string, eventType event.Type, data any) {
	ev, err := event.New(aggregateID, aggregateType, eventType, actorID, data)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("event_type", string(eventType)).
			Str("login", middleware.GetLogin(c)).
			Msg("監査イベントの生成に失敗")
		return
	}
	ev.RequestID = middleware.GetRequestID(c)
	s.recorder.Record(c.Request.Context(), ev)
}
