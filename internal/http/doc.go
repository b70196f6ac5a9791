// Package httpapp provides the HTTP server for bloglist.
//
// Routes:
//
//	GET    /healthz                store ping
//	GET    /metrics                Prometheus exposition (metrics.enabled)
//	GET    /api/version
//	GET    /api/blogs              all blogs with their creator
//	POST   /api/blogs              create (Bearer token)
//	GET    /api/blogs/stats        aggregate statistics
//	GET    /api/blogs/{id}
//	PUT    /api/blogs/{id}         partial update of title, author, url, likes
//	DELETE /api/blogs/{id}         creator only (Bearer token)
//	GET    /api/authors/top?by=blogs|likes
//	GET    /api/users
//	POST   /api/users              register
//	POST   /api/login              returns {token, username, name}
//
// Errors are JSON objects of the form {"error": "..."}.
package httpapp
