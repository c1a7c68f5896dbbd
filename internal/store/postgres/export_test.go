package postgres

var (
	TicketWhere = ticketWhere //nolint:gochecknoglobals // test export
	AuditWhere  = auditWhere  //nolint:gochecknoglobals // test export
)
