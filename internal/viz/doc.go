// Package viz draws lab scenes in the terminal.
//
//   - [Canvas]: Braille dot grid with per-cell colour and a text layer
//   - [Rasterize]: fits a 600x400 [scene.Surface] onto a canvas
//   - [Theme]: five built-in colour schemes; mono themes ink the whole lab
//     in one colour
//   - [Styles]: the lab chrome (titles, panels, probability bar, outcome
//     strip) rendered in a theme
//
// Circles, lines (solid or dashed), groups with translate transforms and
// text labels are supported. Elements whose effective opacity drops below
// 0.2 are skipped, so fading labels vanish cleanly.
package viz
