// pkg/tenants/model.go
package tenants

// Tenant is one hosted storefront, addressed by a unique subdomain label
// under the platform root domain. Rows are provisioned by the master realm;
// this package only reads them.
type Tenant struct {
	ID        string // uuid
	Subdomain string // leading host label (acme)
	Name      string // display name
}

// Kind partitions the two identity spaces plus the terminal "no such
// tenant" outcome. Unknown is distinct from Master: a request for a
// subdomain we cannot resolve must never fall back to the operator realm.
type Kind string

const (
	KindMaster  Kind = "master"
	KindShop    Kind = "shop"
	KindUnknown Kind = "unknown"
)

// Realm is the resolved classification of one inbound request. TenantID is
// set only when Kind == KindShop.
type Realm struct {
	Kind     Kind
	TenantID string
}

func Master() Realm { return Realm{Kind: KindMaster} }

func Shop(tenantID string) Realm { return Realm{Kind: KindShop, TenantID: tenantID} }

func Unknown() Realm { return Realm{Kind: KindUnknown} }

// Matches reports whether two realms denote the same identity space,
// including the tenant id for shop realms.
func (r Realm) Matches(other Realm) bool {
	return r.Kind == other.Kind && r.TenantID == other.TenantID
}
