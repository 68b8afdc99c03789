package restsvc

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vcherkasov/orders-ms/internal/domain"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyTTL       = 24 * time.Hour
)

// withIdempotency оборачивает мутирующий handler проверкой Idempotency-Key.
// Без заголовка запрос выполняется как обычно. Повтор с тем же ключом и тем же
// телом воспроизводит сохранённый ответ; с другим телом — конфликт; пока первый
// запрос ещё обрабатывается — тоже конфликт.
func (h *OrderHandler) withIdempotency(handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.idemRepo == nil {
			handler(c)
			return
		}

		idemKey := c.GetHeader(idempotencyKeyHeader)
		if idemKey == "" {
			handler(c)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			writeErrorBody(c, http.StatusBadRequest, codeInvalidArgument, "failed to read request body")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		reqHash := buildRequestHash(c.Request.Method, c.FullPath(), body)

		record, err := h.idemRepo.CreateProcessing(idemKey, reqHash, time.Now().UTC().Add(idempotencyTTL))
		if err != nil {
			h.replayIdempotency(c, err, record)
			return
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder

		handler(c)

		status := recorder.Status()
		respBody := recorder.buf.Bytes()
		if status >= http.StatusOK && status < http.StatusMultipleChoices {
			if markErr := h.idemRepo.MarkDone(idemKey, respBody, status); markErr != nil {
				h.logger.WithError(markErr).WithField("idempotency_key", idemKey).Warn("failed to store idempotent success response")
			}
			return
		}
		if markErr := h.idemRepo.MarkFailed(idemKey, respBody, status); markErr != nil {
			h.logger.WithError(markErr).WithField("idempotency_key", idemKey).Warn("failed to store idempotency failure response")
		}
	}
}

// replayIdempotency обрабатывает повторный запрос по уже занятому ключу.
func (h *OrderHandler) replayIdempotency(c *gin.Context, createErr error, record domain.IdempotencyRecord) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		writeErrorBody(c, http.StatusConflict, codeIdempotencyConflict, "idempotency key is already used with different request payload")
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch {
		case record.Status.Completed():
			h.replayCachedResponse(c, record)
		case record.Status == domain.IdempotencyStatusProcessing:
			writeErrorBody(c, http.StatusConflict, codeIdempotencyConflict, "request with the same idempotency key is already processing")
		default:
			writeErrorBody(c, http.StatusInternalServerError, codeInternal, "unknown idempotency record status")
		}
	default:
		h.logger.WithError(createErr).Warn("failed to create idempotency record")
		writeErrorBody(c, http.StatusInternalServerError, codeInternal, "failed to initialize idempotency request")
	}
}

func (h *OrderHandler) replayCachedResponse(c *gin.Context, record domain.IdempotencyRecord) {
	if len(record.ResponseBody) == 0 || record.HTTPStatus == 0 {
		h.logger.WithField("idempotency_key", record.Key).Warn("idempotency cache is empty")
		writeErrorBody(c, http.StatusInternalServerError, codeInternal, "idempotency cache is empty")
		return
	}
	c.Data(record.HTTPStatus, "application/json; charset=utf-8", record.ResponseBody)
	c.Abort()
}

func buildRequestHash(method, path string, body []byte) string {
	sum := sha256.New()
	sum.Write([]byte(method))
	sum.Write([]byte{'\n'})
	sum.Write([]byte(path))
	sum.Write([]byte{'\n'})
	sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil))
}

const codeIdempotencyConflict = "idempotency_conflict"

// bodyRecorder дублирует тело ответа в буфер для кэширования.
type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (r *bodyRecorder) Write(data []byte) (int, error) {
	r.buf.Write(data)
	return r.ResponseWriter.Write(data)
}

func (r *bodyRecorder) WriteString(data string) (int, error) {
	r.buf.WriteString(data)
	return r.ResponseWriter.WriteString(data)
}
