// Package secrets implements the secrets manager resources of an
// organization: projects, secrets, service accounts and their access
// tokens.
//
// Access is resolved per resource. Owners and admins, and callers using an
// organization client, skip grant lookups; users and service accounts need
// an explicit read or write grant held by the repository. Callers without a
// grant see NotFound rather than a permission error.
//
//	projects := secrets.NewProjectService(repo, rbac.NewEvaluator(), metrics, logger)
//	results, err := projects.DeleteMany(ctx, actorCtx, ids)
//	for _, r := range results {
//		if !r.Succeeded() {
//			log.Printf("%s: %s", r.ID, r.Error)
//		}
//	}
package secrets
