package middlewarectx

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
)

// TrustedRealIP подставляет адрес клиента из X-Real-IP или X-Forwarded-For
// только для запросов, пришедших от доверенного прокси. Остальные запросы
// идут дальше с исходным RemoteAddr. Элементы списка: IP или CIDR,
// некорректные пропускаются с предупреждением.
func TrustedRealIP(log *slog.Logger, trusted []string) func(http.Handler) http.Handler {
	nets := parseTrusted(log, trusted)
	return func(next http.Handler) http.Handler {
		if len(nets) == 0 {
			return next
		}
		realIP := middleware.RealIP(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if peerTrusted(nets, r.RemoteAddr) {
				realIP.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseTrusted(log *slog.Logger, trusted []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(trusted))
	for _, raw := range trusted {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				log.Warn("invalid trusted proxy", slog.String("value", raw))
				continue
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(raw)
		if err != nil {
			log.Warn("invalid trusted proxy", slog.String("value", raw))
			continue
		}
		nets = append(nets, n)
	}
	return nets
}

func peerTrusted(nets []*net.IPNet, remoteAddr string) bool {
	ip := net.ParseIP(hostOf(remoteAddr))
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP адрес непосредственного собеседника. Заголовки прокси учитываются
// только через TrustedRealIP, который переписывает RemoteAddr.
func ClientIP(r *http.Request) string {
	return hostOf(r.RemoteAddr)
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
