// Package topology holds the resource graph produced by synthesis.
//
// Resources are declared on a [Builder] with typed references ([Ref],
// [GetAtt], [Sub], [Join]) to other resources. [Builder.Build] checks that
// every reference resolves, that no component reaches into a higher-ranked
// component and that there is no cycle, then freezes the result into a
// [Graph] whose order places every resource after its dependencies.
package topology
