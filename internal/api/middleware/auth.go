package middleware

import (
	"crypto/subtle"
	"net/http"
	"os"

	"tradebot/pkg/crypto"
)

// Credentials для защиты endpoints.
// API_PASSWORD_HASH - bcrypt-хеш пароля для мутирующих API endpoints
// (start/stop/config). DEBUG_USERNAME/DEBUG_PASSWORD защищают
// debug/pprof endpoints простым Basic Auth.
var (
	apiUsername     = os.Getenv("API_USERNAME")
	apiPasswordHash = os.Getenv("API_PASSWORD_HASH")
	debugUsername   = os.Getenv("DEBUG_USERNAME")
	debugPassword   = os.Getenv("DEBUG_PASSWORD")
)

// APIAuth - middleware для защиты мутирующих endpoints
//
// Требует HTTP Basic Auth. Пароль проверяется против bcrypt-хеша из
// API_PASSWORD_HASH: открытый пароль на сервере не хранится. Если
// API_PASSWORD_HASH не установлен, аутентификация отключена -
// допустимо только для локального развертывания за firewall.
//
// Хеш генерируется один раз при настройке:
//
//	htpasswd -bnBC 12 "" "password" | tr -d ':\n'
func APIAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Auth не настроен - локальный режим
		if apiPasswordHash == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Trading API"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		userMatch := apiUsername == "" ||
			subtle.ConstantTimeCompare([]byte(user), []byte(apiUsername)) == 1

		// bcrypt сравнение само по себе constant-time
		if !userMatch || !crypto.CheckPasswordMatch(pass, apiPasswordHash) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Trading API"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// DebugAuth - middleware для защиты debug/pprof endpoints
//
// Использует HTTP Basic Authentication с открытыми credentials из
// окружения: debug endpoints включаются редко и ненадолго, bcrypt
// здесь избыточен. Если credentials не установлены, доступ разрешен
// только в development окружении.
func DebugAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if debugUsername == "" || debugPassword == "" {
			if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "Debug endpoints disabled. Set DEBUG_USERNAME and DEBUG_PASSWORD.", http.StatusForbidden)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Debug endpoints"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// Constant-time сравнение для предотвращения timing attacks
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(debugUsername)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(debugPassword)) == 1

		if !userMatch || !passMatch {
			w.Header().Set("WWW-Authenticate", `Basic realm="Debug endpoints"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
