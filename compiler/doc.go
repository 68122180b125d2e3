/*

Process of compilation

Air Text ->
	parse ->
Air Code (air) ->
	validate ->
	handle callee saves ->
	allocate stack ->
Framed Air Code ->
	back ->
Assembly Text (arm64)

Register allocation happens before the text is written,
so every tmp in the input is a machine register.

*/
package compiler
