package access

import "github.com/Fetrelo/safe-delivery-tfm/pkg/ledger"

type Action string

const (
	ActionViewAll          Action = "view_all"
	ActionViewOwn          Action = "view_own"
	ActionCreateShipment   Action = "create_shipment"
	ActionRecordCheckpoint Action = "record_checkpoint"
	ActionManageActors     Action = "manage_actors"
)

// ReadOnlyRole marks roles granted the full viewing surface but none of the
// mutating actions. A predicate, not a classification branch, so the rule list
// stays single-sourced.
func ReadOnlyRole(r ledger.ActorRole) bool {
	return r == ledger.RoleInspector
}

// Actions derives the permitted action set. Admin capabilities are disjoint
// from actor capabilities: the admin oversees the registry but never moves
// freight.
func Actions(c Classification) []Action {
	switch c.Kind {
	case Admin:
		return []Action{ActionViewAll, ActionManageActors}
	case Granted:
		if ReadOnlyRole(c.Role) {
			return []Action{ActionViewAll}
		}
		out := []Action{ActionViewOwn}
		if c.Role == ledger.RoleSender {
			out = append(out, ActionCreateShipment)
		} else {
			out = append(out, ActionRecordCheckpoint)
		}
		return out
	}
	return nil
}

// Can reports whether the classification permits the action.
func Can(c Classification, a Action) bool {
	for _, got := range Actions(c) {
		if got == a {
			return true
		}
	}
	return false
}

type MenuItem struct {
	Label string `json:"label"`
	Route string `json:"route"`
}

const (
	RouteDashboard    = "/dashboard"
	RouteShipments    = "/shipments"
	RouteNewShipment  = "/shipments/new"
	RouteRegistration = "/registration"
	RouteAdmin        = "/admin"
)

// Menu filters the navigation entries to what the session may reach.
func Menu(c Classification) []MenuItem {
	switch c.Kind {
	case Admin:
		return []MenuItem{
			{Label: "Dashboard", Route: RouteDashboard},
			{Label: "Shipments", Route: RouteShipments},
			{Label: "Actors", Route: RouteAdmin},
		}
	case Granted:
		items := []MenuItem{
			{Label: "Dashboard", Route: RouteDashboard},
			{Label: "Shipments", Route: RouteShipments},
		}
		if c.Role == ledger.RoleSender {
			items = append(items, MenuItem{Label: "New shipment", Route: RouteNewShipment})
		}
		return items
	case NoRecord, Pending, Rejected:
		return []MenuItem{{Label: "Registration", Route: RouteRegistration}}
	}
	return nil
}

// Decision is a route admission outcome.
type Decision struct {
	Allowed    bool   `json:"allowed"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

func allow() Decision { return Decision{Allowed: true} }

func redirect(route string) Decision { return Decision{RedirectTo: route} }

// GuardRoute admits or redirects a navigation. A wallet-less session stays
// where it is (the connect prompt renders in place); an unregistered or
// unresolved session lands on registration, never the dashboard.
func GuardRoute(c Classification, cfg Config, route string) Decision {
	if route == RouteRegistration {
		if c.Kind == Admin && !cfg.AdminSeesRegistration {
			return redirect(RouteAdmin)
		}
		return allow()
	}
	switch c.Kind {
	case NoWallet, Unchecked, Checking:
		return Decision{Allowed: false}
	case NoRecord, Pending, Rejected:
		return redirect(RouteRegistration)
	case Admin:
		return allow()
	case Granted:
		if route == RouteAdmin {
			return redirect(RouteDashboard)
		}
		if route == RouteNewShipment && c.Role != ledger.RoleSender {
			return redirect(RouteShipments)
		}
		return allow()
	}
	return Decision{Allowed: false}
}

// Checkpoint type names recorded on the ledger.
const (
	CheckpointPickup   = "Pickup"
	CheckpointTransit  = "Transit"
	CheckpointHub      = "Hub"
	CheckpointDelivery = "Delivery"
	CheckpointReport   = "Report"
)

// InferCheckpointType picks the checkpoint type the actor's role implies at
// the shipment's current status. Anything outside the role's expected window
// degrades to Report, which records without advancing the shipment.
func InferCheckpointType(role ledger.ActorRole, status ledger.ShipmentStatus) string {
	switch role {
	case ledger.RoleCarrier:
		switch status {
		case ledger.StatusCreated, ledger.StatusAtHub:
			return CheckpointPickup
		case ledger.StatusInTransit:
			return CheckpointTransit
		}
	case ledger.RoleHub:
		switch status {
		case ledger.StatusInTransit, ledger.StatusOutForDelivery:
			return CheckpointHub
		}
	case ledger.RoleRecipient:
		if status == ledger.StatusOutForDelivery {
			return CheckpointDelivery
		}
	}
	return CheckpointReport
}

// AdvancesStatus reports whether recording the checkpoint type moves the
// shipment forward. Transit and Report annotate without advancing.
func AdvancesStatus(checkpointType string) bool {
	switch checkpointType {
	case CheckpointPickup, CheckpointHub, CheckpointDelivery:
		return true
	}
	return false
}
