package models

// RoleLevel is the hierarchical level of a user.
type RoleLevel string

const (
	RoleAdmin       RoleLevel = "admin"
	RoleDiretoria   RoleLevel = "diretoria"
	RoleGestor      RoleLevel = "gestor"
	RoleColaborador RoleLevel = "colaborador"
	RoleMaoDeObra   RoleLevel = "mao_de_obra"
)

// Rank orders role levels; higher ranks include lower ones.
func (l RoleLevel) Rank() int {
	switch l {
	case RoleAdmin:
		return 5
	case RoleDiretoria:
		return 4
	case RoleGestor:
		return 3
	case RoleColaborador:
		return 2
	case RoleMaoDeObra:
		return 1
	default:
		return 0
	}
}

// Sector is a business unit of the firm.
type Sector string

const (
	SectorAdministrativo Sector = "administrativo"
	SectorAssessoria     Sector = "assessoria"
	SectorObras          Sector = "obras"
)

// ResponsibleRole is the coordinator role that owns a step.
type ResponsibleRole string

const (
	CoordAdministrativo ResponsibleRole = "coord_administrativo"
	CoordAssessoria     ResponsibleRole = "coord_assessoria"
	CoordObras          ResponsibleRole = "coord_obras"
)

// Sector returns the sector the coordinator role belongs to.
func (r ResponsibleRole) Sector() Sector {
	switch r {
	case CoordAdministrativo:
		return SectorAdministrativo
	case CoordAssessoria:
		return SectorAssessoria
	case CoordObras:
		return SectorObras
	default:
		return ""
	}
}

// Valid reports whether r is a known coordinator role.
func (r ResponsibleRole) Valid() bool {
	return r.Sector() != ""
}

// DefaultApprovers may decide approval items unless configured otherwise.
var DefaultApprovers = []RoleLevel{RoleAdmin, RoleDiretoria, RoleGestor}

// RoleContext describes the acting user for a single call.
type RoleContext struct {
	UserID    string    `json:"user_id"    validate:"required"`
	RoleLevel RoleLevel `json:"role_level" validate:"required,oneof=admin diretoria gestor colaborador mao_de_obra"`
	Sector    Sector    `json:"sector"     validate:"omitempty,oneof=administrativo assessoria obras"`
}

// IsExecutive reports whether the user is admin or diretoria.
func (rc RoleContext) IsExecutive() bool {
	return rc.RoleLevel == RoleAdmin || rc.RoleLevel == RoleDiretoria
}

// Coordinates reports whether the user is the gestor of the given sector.
func (rc RoleContext) Coordinates(sector Sector) bool {
	return rc.RoleLevel == RoleGestor && rc.Sector == sector
}

// BelongsTo reports whether the user works in the given sector at colaborador level or above.
func (rc RoleContext) BelongsTo(sector Sector) bool {
	return rc.RoleLevel.Rank() >= RoleColaborador.Rank() && rc.Sector == sector
}

// HasLevel reports whether the user's level is one of levels.
func (rc RoleContext) HasLevel(levels []RoleLevel) bool {
	for _, level := range levels {
		if rc.RoleLevel == level {
			return true
		}
	}

	return false
}
