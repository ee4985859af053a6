package middlewares

import (
	"bytes"
	"context"
	"mime"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/dropDatabas3/ofbmock/internal/canonical"
	"github.com/dropDatabas3/ofbmock/internal/http/errors"
	"github.com/dropDatabas3/ofbmock/internal/http/helpers"
	"github.com/dropDatabas3/ofbmock/internal/jws"
	"github.com/dropDatabas3/ofbmock/internal/metrics"
	"github.com/dropDatabas3/ofbmock/internal/observability/logger"
)

// SigningContext es lo que el interceptor sabe de una respuesta saliente.
type SigningContext struct {
	StatusCode  int
	RequestPath string
	Method      string
}

// Signer es lo que el interceptor necesita del servicio de firma.
type Signer interface {
	Sign(ctx context.Context, payload []byte) (*jws.Envelope, error)
}

// Interceptor decide si una respuesta se firma y, si corresponde, reemplaza el
// cuerpo por el JWS compacto.
type Interceptor struct {
	signer    Signer
	policy    Policy
	mediaType string
}

type InterceptorOption func(*Interceptor)

// WithPolicy reemplaza la política de elegibilidad por defecto.
func WithPolicy(p Policy) InterceptorOption {
	return func(i *Interceptor) { i.policy = p }
}

// WithMediaType cambia el Content-Type de las respuestas firmadas.
func WithMediaType(mt string) InterceptorOption {
	return func(i *Interceptor) {
		if mt = strings.TrimSpace(mt); mt != "" {
			i.mediaType = mt
		}
	}
}

func NewInterceptor(s Signer, opts ...InterceptorOption) *Interceptor {
	i := &Interceptor{
		signer:    s,
		policy:    DefaultPolicy(),
		mediaType: jws.MediaType,
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// MediaType devuelve el Content-Type de las respuestas firmadas.
func (i *Interceptor) MediaType() string { return i.mediaType }

// Eligible: status 200, path protegido, entidad presente y respuesta aún no firmada.
func (i *Interceptor) Eligible(sc SigningContext, header http.Header, entity any) bool {
	return sc.StatusCode == http.StatusOK &&
		i.policy.Matches(sc.Method, sc.RequestPath) &&
		present(entity) &&
		!i.alreadySigned(header)
}

func (i *Interceptor) alreadySigned(header http.Header) bool {
	ct := header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return strings.EqualFold(mt, i.mediaType)
}

// Apply procesa una respuesta. Si no es elegible devuelve signed=false y deja
// todo intacto. Si lo es, devuelve el JWS compacto como cuerpo y setea el
// Content-Type firmado en header. Ante error header no se modifica.
func (i *Interceptor) Apply(ctx context.Context, sc SigningContext, header http.Header, entity any) (body []byte, signed bool, err error) {
	if !i.Eligible(sc, header, entity) {
		metrics.RecordPassthrough()
		return nil, false, nil
	}

	start := time.Now()
	env, err := i.sign(ctx, entity)
	if err != nil {
		kind := string(jws.KindOf(err))
		metrics.RecordFailure(kind)
		// nunca el payload: solo path y tipo de falla
		logger.From(ctx).Error("jws signing failed",
			logger.Path(sc.RequestPath),
			logger.ErrorKind(kind),
		)
		return nil, false, err
	}
	metrics.RecordSigned(time.Since(start))

	header.Set("Content-Type", i.mediaType)
	header.Del("Content-Length")
	return []byte(env.Compact()), true, nil
}

func (i *Interceptor) sign(ctx context.Context, entity any) (*jws.Envelope, error) {
	payload, err := canonical.Canonicalize(entity)
	if err != nil {
		return nil, err
	}
	if i.signer == nil {
		return nil, jws.ErrKeyUnavailable
	}
	return i.signer.Sign(ctx, payload)
}

// present: nil y punteros/mapas/slices nil cuentan como entidad ausente.
func present(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// WithJWSSigning monta el interceptor sobre las respuestas de next. Las rutas
// fuera de la política pasan sin buffer; el resto se bufferea completo para
// poder reemplazar el cuerpo.
func WithJWSSigning(i *Interceptor) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !i.policy.MatchesRequest(r) {
				metrics.RecordPassthrough()
				next.ServeHTTP(w, r)
				return
			}

			ctx, slot := helpers.WithEntitySlot(r.Context())
			bw := &bufferedWriter{w: w}
			next.ServeHTTP(bw, r.WithContext(ctx))

			sc := SigningContext{StatusCode: bw.statusCode(), RequestPath: r.URL.Path, Method: r.Method}
			entity, ok := slot.Get()
			if !ok && sc.StatusCode == http.StatusOK && !i.alreadySigned(w.Header()) {
				entity = decodeBody(ctx, w.Header(), bw.buf.Bytes())
			}

			body, signed, err := i.Apply(ctx, sc, w.Header(), entity)
			switch {
			case err != nil:
				w.Header().Del("Content-Length")
				errors.WriteError(w, errors.ErrSigningFailed.WithDetail(string(jws.KindOf(err))))
			case signed:
				w.WriteHeader(sc.StatusCode)
				_, _ = w.Write(body)
			default:
				bw.replay()
			}
		})
	}
}

// decodeBody recupera la entidad de un cuerpo JSON escrito sin WriteEntity.
// Cuerpo vacío, null o no-JSON = entidad ausente.
func decodeBody(ctx context.Context, header http.Header, body []byte) any {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if ct := header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || !(mt == "application/json" || strings.HasSuffix(mt, "+json")) {
			return nil
		}
	}
	tree, err := canonical.DecodeJSON(body)
	if err != nil {
		logger.From(ctx).Debug("response body is not JSON; left unsigned", logger.Err(err))
		return nil
	}
	return tree
}

// bufferedWriter retiene status y cuerpo; los headers van directo al writer real.
type bufferedWriter struct {
	w           http.ResponseWriter
	buf         bytes.Buffer
	status      int
	wroteHeader bool
}

func (b *bufferedWriter) Header() http.Header { return b.w.Header() }

func (b *bufferedWriter) WriteHeader(code int) {
	if b.wroteHeader {
		return
	}
	b.status = code
	b.wroteHeader = true
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if !b.wroteHeader {
		b.WriteHeader(http.StatusOK)
	}
	return b.buf.Write(p)
}

func (b *bufferedWriter) statusCode() int {
	if !b.wroteHeader {
		return http.StatusOK
	}
	return b.status
}

// replay entrega la respuesta original sin tocar un byte.
func (b *bufferedWriter) replay() {
	if !b.wroteHeader {
		return
	}
	b.w.WriteHeader(b.status)
	if b.buf.Len() > 0 {
		_, _ = b.w.Write(b.buf.Bytes())
	}
}
