// Package http provides HTTP handlers and middleware for the school calendar API.
//
// The router exposes the following endpoints:
//   - POST /auth/login: body {"email","password"}. Response {"token","expiresAt","user"}.
//     The token is sent back as "Authorization: Bearer <token>" on every other route.
//   - POST /auth/register: public self registration; the account starts as pendente.
//   - GET /auth/me: the current user.
//   - GET /healthz: liveness probe, unauthenticated.
//   - GET /calendarios, POST /calendarios, GET|PUT|DELETE /calendarios/{id}: calendar
//     records exchanging the calendarioDTO payload defined in calendario_handler.go.
//     Dates travel as AAAA-MM-DD strings; an empty string means "not decided yet".
//   - POST /calendarios/{id}/enviar, /aprovar, /solicitar-ajuste: workflow transitions.
//     solicitar-ajuste takes {"comentario"}.
//   - GET /calendarios/estatisticas and GET /calendarios/consolidado: counts and the
//     consolidated event list, filtered by turma, disciplina, bimestre, ano and status.
//   - GET /calendarios/{id}/pdf and GET /calendarios/turma/pdf?turma=&bimestre=&ano=:
//     rendered PDF documents streamed as attachments.
//   - GET|POST /grade-horaria, DELETE /grade-horaria/{id}, GET /grade-horaria/dias: the
//     weekly grid and the dates it yields over a range.
//   - GET /users, PUT /users/me, POST /users/{id}/aprovar, POST /users/{id}/rejeitar,
//     DELETE /users/{id}: account administration.
//
// Errors are JSON objects {"error_code","message","errors"} with Portuguese messages.
package http
