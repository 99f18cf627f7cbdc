package pipeline

import "github.com/garunski/marketplace-publisher/pkg/publisher/pack"

// resolveMissingDependencies revisits packs whose dependencies had no index
// entry during the first pass. Every pack of the first pass has been merged
// by now, so their dependency fields are rebuilt and the entries merged
// again. Only packs that completed the first pass are revisited.
func (r *Runner) resolveMissingDependencies(rs *runState, packs []*pack.Pack) {
	var flagged []string
	for _, p := range packs {
		if !p.MissingDependencies || p.Status != pack.StatusSuccess {
			continue
		}
		flagged = append(flagged, p.Name)

		if err := p.FormatMetadata(r.formatOptions(rs), true); err != nil {
			p.Fail(pack.StatusFailedMetadataReformatting, err)
			r.record(p, "resolve-dependencies", err)
			continue
		}
		if err := rs.tree.MergePack(p.Name, p.Path, p.Version, p.Hidden); err != nil {
			p.Fail(pack.StatusFailedUpdatingIndexFolder, err)
			r.record(p, "resolve-dependencies", err)
			continue
		}
		p.Status = pack.StatusSuccess
		r.record(p, "resolve-dependencies", nil)
	}
	r.logger.Info("resolved packs with missing dependencies", "packs", flagged)
}
