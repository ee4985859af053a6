// Package logger provee un logger Zap singleton con scoping por contexto.
//
// # Decisiones
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Context Scoping: cada request lleva su propio logger "scoped" (request_id,
//     method, path) sin crear un nuevo core.
//   - Entornos: "dev" usa consola con colores, "prod" usa JSON.
//   - Datos financieros: los payloads firmados NUNCA se loguean; para fallas de
//     firma se usan Path y ErrorKind.
//
// # Uso
//
// Inicialización (una vez en main.go):
//
//	logger.Init(logger.Config{
//	    Env:   cfg.App.Env,   // "dev" o "prod"
//	    Level: cfg.Log.Level, // "debug", "info", "warn", "error"
//	})
//	defer logger.Sync()
//
// En middlewares/handlers (con contexto):
//
//	log := logger.From(r.Context())
//	log.Error("jws signing failed", logger.Path(p), logger.ErrorKind(kind))
package logger
