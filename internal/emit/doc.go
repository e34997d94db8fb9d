// Package emit turns extracted records into output tables. A Collector
// gathers records during a run, the Normalizer cleans and orders them, and
// the Writer serializes tables as CSV or JSON artifacts and announces each
// one to a Publisher.
package emit
