// Package logger provee el logger Zap del proceso con scoping por contexto.
//
// Init se llama una sola vez desde cmd/tenantdb con el nivel y entorno de la config.
// Los componentes del core (pools, router, provisioner) loguean vía L() o Named();
// los handlers HTTP usan From(ctx), que devuelve el logger con request_id y tenant_id
// inyectado por los middlewares.
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
//	defer logger.Sync()
//
//	logger.From(ctx).Warn("acquire failed", logger.TenantID(id), logger.Err(err))
package logger
