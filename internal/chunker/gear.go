package chunker

// gear is the 256-entry lookup table used to update the FastCDC rolling
// fingerprint, one pseudo-random 64-bit value per input byte value. The
// values are fixed so that chunking is deterministic across processes and
// machines; they carry no cryptographic meaning.
var gear = [256]uint64{
	0xf9cadb860a0af23f, 0xfcdef16f1fec1ca6, 0xe24880ee14dfd88b, 0x1d6b1ecbef0ca2f7,
	0x12567b44b0072e67, 0x9c46a0aba83f71b4, 0x0d7fe61f40d2c836, 0x98598cd7e56af016,
	0x350354802fc6ca94, 0xba9e697aa907f173, 0xf47eb5198d797d75, 0x5e6873dc8ce89165,
	0x0faf1b83597669e6, 0xe392bf0054b578c3, 0xa09251626d4ac661, 0x41d16e7f2dc340fe,
	0xf2cac61f90d4c6b0, 0x34ab5f77f6ed058d, 0x6e41268c43fd2c9a, 0x852b1d5b746ed7c2,
	0xfc758dc7eefa7c30, 0xf6d77f45ee5ba086, 0xe306d080144db5dd, 0x474bf6832c7b0cd8,
	0x61d821bd9fe78064, 0x7dfe9754e725d745, 0x0430df971bf63e3c, 0xcd0ffe655dca29f4,
	0x3e4f44e4834c17be, 0xdb379081c4fbfaff, 0xbc2d591d6609280f, 0x9ad21822857d5e9e,
	0xa3e19bf038983e72, 0xe591d801b689ce2b, 0x3d1b33fd03b64bb3, 0xc1d7ebb36a5d5fe9,
	0xef1d40b10f3f683a, 0xf09053fa8cd95e6d, 0xe46c68437adcb0de, 0xcbad765fccb79bef,
	0xef0fa008fa37283b, 0x21b011fbc9bdf02e, 0xe4d5b0f5e66c2d70, 0x87e8a1b850916659,
	0x8c17fe169576851f, 0x14c116e6d9b2a789, 0xcda09ddf0affadb0, 0x0be5d2f3cda2f338,
	0xa6fd5b0a6492b44a, 0xfb616ea3d67c6c23, 0xb3bd3551b559f8eb, 0x904ab6cc362ce013,
	0x8bf3de41b274d158, 0xfe729c1cb5510e9b, 0x00dcac4de4ac5ffc, 0x5976171de999ea2b,
	0x2eec6ffe96fd6c57, 0xa87c43fae2083e63, 0x3293d40292d4e41c, 0x458c3945b7774c33,
	0x01221edfef9ff0a9, 0xbf959b17eeaa8bf9, 0x3066283b9dda4813, 0x7f1f3c1e1cfede3f,
	0x1cd1c49515cdcdc5, 0x9a6a15e102200d25, 0x417c63a6dfb2a2e0, 0xafe795bf4ae4545e,
	0xae6906e34a21c17a, 0x01dd29890fa25fad, 0x18deaebecd3e9e68, 0x1120a005b8a0b69f,
	0x977f43ba2799ca74, 0x98020e07ede9f496, 0xbab34b892ebaaa7a, 0x3036151a3d1220c7,
	0x4fd6c9db0c3c70ca, 0x2d2980b1a4846cd6, 0x05b2798896cda1da, 0xf442fdc7325a241c,
	0x095ff4d014724dc5, 0x19a47aa66fa5c0cb, 0x5e855cf215d470bf, 0xb6a8eecce501f501,
	0x79b85c848b4e8ff4, 0xc5cf2d6885832f3f, 0x91ba955d4086cb70, 0x5950db884007ff5d,
	0xf8e7934fa1d08e15, 0xaf4b6c433b435e7f, 0xaca545978ed62fff, 0x7454f6a8b0791fb0,
	0x6b96ec4a22e71d38, 0x068c1f888c5a6ab1, 0x9f495aca8b5f4334, 0x3894406cdf7309e6,
	0x1575bb644e138049, 0x450bca8ba345f171, 0xf272c97afa22a897, 0x76570d6553556de2,
	0xa9d43450b2210a85, 0x183da63ca640a1ef, 0xb223fb66b30000a2, 0x1403035aac8b259d,
	0x30d238b60fbd7ac7, 0x84dd1f348d7e18ea, 0xae951a7e53565aab, 0x881ab4102470b7ce,
	0x7c6cf39d1e25edc0, 0x3a5977515c8390b5, 0x85fe9d84bfbdd918, 0x6ac1ef6bce4f1aba,
	0x51109cdffee1d678, 0x122adc2007ba424e, 0xa50567fa2ebbf4d4, 0x8a4f9556e5ad8d56,
	0x2f92c578b179b97d, 0x1054669375e29ab1, 0xe9905fc9bfbe5d78, 0xb3e1348e72923b14,
	0x7054f44ca8782f7b, 0xab43f6c7032231c6, 0x97d86d6252552ab7, 0xd30f42641d1990b6,
	0x04d583171cf06119, 0xeec9bdacf128b971, 0x0b9de185732abab7, 0x6be986fa16102e87,
	0xffea36ae5daa69fd, 0x114ccfa468fac307, 0xdebb6c9443aecd7a, 0x830db2f332a46bc2,
	0xec63c4c053b7c85c, 0x02c6165be2d1a4be, 0x2f7357259827be5d, 0xb13b898fdf40324a,
	0x53bb40ca223544e4, 0x6c802bc0112fc40f, 0x74a301ab6423afbd, 0x7607595ecad470a2,
	0x7b0c026d2fa101e1, 0xe914285efd33666a, 0x89f7bcf9e00a507c, 0xdc4890aa827866c1,
	0xb2458fda41bb70f8, 0x45a2cf6d7c346e8a, 0x120275ddc813993a, 0xb34a33be466f4113,
	0x251cf9a8ef661b90, 0x1fde7db2b65768d8, 0xf75ccb9fb06cad02, 0xf41fb61fc6bc7c7c,
	0xc912c80ee1aa7cb5, 0x7cc09a698502f9a4, 0x4e4aac57daf3deb2, 0x661f1642c9200fce,
	0xebcd16bd82df054d, 0xe5a6ebb878b7e1b1, 0x5e4b2a67445fd568, 0xba77cae8daf1eaf7,
	0x2459ad0abdbe4c62, 0x37a00fbe096dc0f2, 0xe28338c0f6e3fd09, 0x899c4c12eff82c6e,
	0x9809cb3d793604f7, 0xf7e7c354da16d7d2, 0xf5c86a40bbbc63e8, 0x0c8998bd3654d680,
	0x61b98e499e27cbe6, 0x85c6936889688850, 0xb21ec90663c8b7a7, 0x2c72d1e7bf626abb,
	0xc4d35d645ee70e8e, 0x93d247929b2d7cab, 0x21141eccfe3e8cc0, 0xf882febc2bd02a73,
	0x012054de83b1bbef, 0xe2012a3edaf7726f, 0x2ce3235a5ae15fcf, 0x6152dbd5c84b5190,
	0x0b165ec7fd683747, 0xf84e95d9f58f64dc, 0xe0eba8d5ec4c4ce4, 0xab081cfe31385c8c,
	0x3ddbd190cafdae9a, 0x515dfb9199dc37e3, 0x5734d32cec87d56a, 0xd6df9eab2589016e,
	0x583dcc0f0ca0a0d6, 0xa6eb2322032940a0, 0xa3ae1021ce1a17dd, 0x00f47c2f56c6a183,
	0xe6da5a1caf2e39a2, 0x02ac8b05d5d0b090, 0x3ef2b024cf122f49, 0xb66f971d1075dee5,
	0xe225810a4e9d5ecb, 0xef3f27b57aea64ce, 0x2ae8b89d651cd19a, 0x468c226bb4ba58f3,
	0xf5bc2a589ea7c18b, 0x12c0c1b2069ed81c, 0x8457f08b0bb1cd69, 0xff0cf11e5a7c0f92,
	0x90c26ee23be9c3ac, 0x9f9fa8fa02776789, 0xef1190931ed746c4, 0x3dd7c77b8c21ae16,
	0x3c6b7f879a3aeb72, 0x962c010d49b31922, 0xcd69324254f8d744, 0xb95b491696e6a221,
	0x49eb8d08b5503a2b, 0x875074247e6ef9ea, 0xf62757169dfd4924, 0x67593abd740c3412,
	0x4728767b252fbdee, 0x13a5363725df6222, 0xef6c80366123ce8c, 0xbaf0cb491961b643,
	0xb9ee1389291055d7, 0x398eeaf88d2c1cae, 0xa57434c2228b0437, 0xa636aad35370b80e,
	0x880140d3fcd83a44, 0x0138139fd0613d49, 0xcbab6d7368cc36e1, 0xec2960f5a7fbc26d,
	0x078a202adc3e0bcb, 0x5b143ba03477edab, 0x9090925732019387, 0x491664a53f266377,
	0x178754967a5b7c27, 0x49aba668685f58e4, 0x32210f707a993d2e, 0x07a30fac2ea5a507,
	0x20485017651c1a13, 0xe506a0b07b63c65a, 0xc8dfd1c2c0c06463, 0xef1abb6ba41ba7d7,
	0xd89a6fa49fd6accd, 0xfa4b204276c43ec0, 0x1fe895353a3da241, 0x87c04236a2981650,
	0x92bc1623d3bd04aa, 0xe3e40f0ac6172ef3, 0x87574fe4a27d9185, 0x5f1d49e68984f953,
	0x7dc2bbdfa54928a3, 0x59daefbefb3c20b7, 0xff8b12e5fc07ee8e, 0xe32b17128349cfb8,
	0xd0a3c63177b4f284, 0x472f60d84d109a56, 0xce9d49d6bc2081da, 0xa608328a8ffeba44,
}
