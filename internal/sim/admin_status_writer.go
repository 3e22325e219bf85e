package sim

// AdminStatusWriter is implemented by writers that can surface whether the
// admin API is listening.
type AdminStatusWriter interface {
	SetAdminStatus(listening bool)
}
