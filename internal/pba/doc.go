// Package pba owns the landmark-tracking core of the photometric
// bundle-adjustment pipeline.
//
// Responsibilities: sub-pixel intensity sampling, fixed-size patch
// extraction, ZNCC patch correlation, scene-point lifecycle bookkeeping,
// and the per-frame orchestration that ties them together.
// Key types: Gray32, Patch, ZnccPatch, ScenePoint,
// PhotometricBundleAdjustment.
//
// Dependency rule: pba may depend on gonum for cold-path linear algebra
// and statistics, but the hot sampling/scoring path stays allocation-free.
// No SQL/database code is allowed in this package; persistence lives in
// pba/store.
package pba
