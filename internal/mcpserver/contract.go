package mcpserver

// ThresholdsContract documents the module thresholds that decide which fitted
// terms become network edges. It is served as the regnet://thresholds resource.
const ThresholdsContract = `# regnet Module Thresholds

A module is the set of target genes attributed to one regulator. Modules are
built from the stored per-gene models; changing thresholds never refits.

## Fields

| Field                  | Default | Meaning |
|------------------------|---------|---------|
| ` + "`p_value_max`" + `          | 0.05    | Largest p-value a term may have to become an edge (0..1). |
| ` + "`use_adjusted`" + `         | false   | Compare the BH-adjusted p-value instead of the raw one. |
| ` + "`min_terms`" + `            | 1       | A gene model needs at least this many terms to contribute. |
| ` + "`min_r_squared`" + `        | 0.1     | A gene model needs at least this R² to contribute (0..1). |
| ` + "`min_genes_per_module`" + ` | 5       | Regulators with fewer targets are dropped. |
| ` + "`max_targets`" + `          | 0       | Keep only the best N targets per regulator; 0 keeps all. |

## Edge selection

1. Terms of models failing ` + "`min_terms`" + ` or ` + "`min_r_squared`" + ` are ignored.
2. Terms above ` + "`p_value_max`" + ` are ignored.
3. When a regulator reaches a target through several regions, the best term
   wins: lower p-value, then larger |estimate|, then higher R², then region ID.
4. The sign of the estimate gives the edge sign: positive is activating,
   negative is repressing.

## Monotonicity

With ` + "`max_targets`" + ` = 0, loosening any threshold never removes an edge.

## Example

` + "```" + `yaml
modules:
  p_value_max: 0.01
  use_adjusted: true
  min_terms: 1
  min_r_squared: 0.2
  min_genes_per_module: 10
  max_targets: 0
` + "```" + `
`
