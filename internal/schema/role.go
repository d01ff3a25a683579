package schema

// Role 组织角色分类
type Role string

const (
	RoleIC      Role = "IC"
	RoleManager Role = "MANAGER"
)

// Valid 是否为已知角色
func (r Role) Valid() bool {
	return r == RoleIC || r == RoleManager
}
