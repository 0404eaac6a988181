package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

type contextKey string

const subjectKey contextKey = "subject_id"

// AuthMiddleware проверяет HMAC-подпись bearer-токена и кладёт ID
// пользователя в контекст запроса. Формат токена: "<userID>:<hex подпись>",
// подпись — HMAC-SHA256 от десятичного ID на общем секрете.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if token == "" || token == header {
				WriteError(w, http.StatusUnauthorized, "токен отсутствует")
				return
			}
			userID, ok := validateToken(token, key)
			if !ok {
				WriteError(w, http.StatusUnauthorized, "подпись недействительна")
				return
			}
			ctx := context.WithValue(r.Context(), subjectKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SignToken строит токен для указанного пользователя. Используется в тестах
// и утилитах выпуска токенов.
func SignToken(userID int64, secret string) string {
	id := strconv.FormatInt(userID, 10)
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(id))
	return id + ":" + hex.EncodeToString(h.Sum(nil))
}

func validateToken(token string, key []byte) (int64, bool) {
	idPart, sigPart, found := strings.Cut(token, ":")
	if !found {
		return 0, false
	}
	userID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || userID <= 0 {
		return 0, false
	}
	expected, err := hex.DecodeString(sigPart)
	if err != nil {
		return 0, false
	}
	h := hmac.New(sha256.New, key)
	h.Write([]byte(idPart))
	if !hmac.Equal(h.Sum(nil), expected) {
		return 0, false
	}
	return userID, true
}

// SubjectID возвращает ID пользователя из контекста запроса.
func SubjectID(r *http.Request) (int64, bool) {
	id, ok := r.Context().Value(subjectKey).(int64)
	return id, ok
}

// WriteError отправляет JSON с ошибкой.
func WriteError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}

// WriteJSON отправляет ответ в формате JSON.
func WriteJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
